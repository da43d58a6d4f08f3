package listing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/debemdeboas/backoffice/internal/model"
)

func loaded(t *testing.T, rows ...model.Record) *List[model.Record] {
	t.Helper()
	l := Records("blogs")
	require.NoError(t, l.Load(context.Background(), func(context.Context) ([]model.Record, error) {
		return rows, nil
	}))
	return l
}

func ids(l *List[model.Record]) []string {
	var out []string
	for _, r := range l.Items() {
		out = append(out, r.ID())
	}
	return out
}

func TestLoad(t *testing.T) {
	l := loaded(t, model.Record{"_id": "a"}, model.Record{"_id": "b"})
	assert.Equal(t, []string{"a", "b"}, ids(l))

	err := l.Load(context.Background(), func(context.Context) ([]model.Record, error) {
		return nil, errors.New("boom")
	})
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(l), "failed load keeps previous rows")

	require.NoError(t, l.Load(context.Background(), func(context.Context) ([]model.Record, error) {
		return nil, nil
	}))
	assert.Equal(t, 0, l.Len())
	ok, _ := l.Loaded()
	assert.True(t, ok)
}

func TestRemove(t *testing.T) {
	testCases := []struct {
		name      string
		commitErr error
		want      []string
	}{
		{name: "commit succeeds", want: []string{"a", "c"}},
		{name: "commit fails and rows are restored", commitErr: errors.New("500"), want: []string{"a", "b", "c"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			l := loaded(t, model.Record{"_id": "a"}, model.Record{"_id": "b"}, model.Record{"_id": "c"})
			err := l.Remove(context.Background(), "b", func(ctx context.Context, id string) error {
				assert.Equal(t, "b", id)
				assert.Equal(t, []string{"a", "c"}, ids(l), "row disappears before the call returns")
				return tc.commitErr
			})
			assert.Equal(t, tc.commitErr, err)
			assert.Equal(t, tc.want, ids(l))
		})
	}
}

func TestRemoveUnknown(t *testing.T) {
	l := loaded(t, model.Record{"_id": "a"})
	called := false
	err := l.Remove(context.Background(), "zzz", func(context.Context, string) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.False(t, called)

	err = Records("jobs").Remove(context.Background(), "a", nil)
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestUpdateRollsBack(t *testing.T) {
	l := loaded(t, model.Record{"_id": "a", "isPublished": false})
	toggle := func(r model.Record) model.Record {
		out := r.Clone()
		out["isPublished"] = !r.Bool("isPublished")
		return out
	}

	err := l.Update(context.Background(), "a", toggle, func(context.Context, string) error {
		row, _ := l.Find("a")
		assert.True(t, row.Bool("isPublished"))
		return errors.New("refused")
	})
	assert.Error(t, err)
	row, _ := l.Find("a")
	assert.False(t, row.Bool("isPublished"))

	require.NoError(t, l.Update(context.Background(), "a", toggle, func(context.Context, string) error { return nil }))
	row, _ = l.Find("a")
	assert.True(t, row.Bool("isPublished"))
}

func TestRollbackKeepsConcurrentChanges(t *testing.T) {
	l := loaded(t, model.Record{"_id": "a"}, model.Record{"_id": "b"}, model.Record{"_id": "c"})

	err := l.Remove(context.Background(), "a", func(context.Context, string) error {
		require.NoError(t, l.Remove(context.Background(), "c", func(context.Context, string) error { return nil }))
		return errors.New("refused")
	})
	assert.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(l))
}
