// Package util provides content hashing and markdown front matter parsing.
package util

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/gomarkdown/markdown"

	"github.com/mmarkdown/mmark/v2/mast"
)

// PostMeta is the TOML front matter of a markdown blog post. The mmark title
// block fields are embedded; the rest map onto blog record fields.
type PostMeta struct {
	*mast.TitleData
	Subtitle  string `toml:"subtitle"`
	Category  string `toml:"category"`
	Image     string `toml:"image"`
	Published bool   `toml:"published"`

	// Consumed is the length of the front matter block, delimiters included.
	Consumed int `toml:"-"`
}

// AuthorName returns the first author listed, if any.
func (m *PostMeta) AuthorName() string {
	if m.TitleData == nil || len(m.Author) == 0 {
		return ""
	}
	return m.Author[0].Fullname
}

func ContentHash(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

func ContentHashString(content string) string {
	return ContentHash([]byte(content))
}

var errFrontMatter = fmt.Errorf("invalid front matter format")

// GetFrontMatter decodes the %%%-delimited TOML block that must open md.
func GetFrontMatter(md []byte) (*PostMeta, error) {
	md = markdown.NormalizeNewlines(md)
	md = bytes.TrimLeft(md, "\n \t\r")

	delimiter := []byte("%%%")

	if len(md) < 2*len(delimiter) {
		return nil, errFrontMatter
	}

	first := bytes.Index(md[:len(delimiter)+1], delimiter)
	if first == -1 {
		return nil, errFrontMatter
	}

	second := bytes.Index(md[first+len(delimiter):], delimiter)
	if second == -1 {
		return nil, errFrontMatter
	}

	end := second + 2*len(delimiter) + 1
	if end > len(md) {
		return nil, errFrontMatter
	}

	frontMatter := md[len(delimiter) : end-len(delimiter)-1]
	info := &PostMeta{
		TitleData: &mast.TitleData{},
	}

	if _, err := toml.Decode(string(frontMatter), info); err != nil {
		return nil, fmt.Errorf("failed to decode front matter: %w", err)
	}

	if info.Language == "" {
		info.Language = "en"
	}
	info.Consumed = end

	return info, nil
}

// Body returns md without its front matter block.
func Body(md []byte) ([]byte, error) {
	meta, err := GetFrontMatter(md)
	if err != nil {
		return nil, err
	}
	md = bytes.TrimLeft(markdown.NormalizeNewlines(md), "\n \t\r")
	return bytes.TrimLeft(md[meta.Consumed:], "\n"), nil
}
