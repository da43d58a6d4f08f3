package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/debemdeboas/backoffice/internal/api"
	"github.com/debemdeboas/backoffice/internal/model"
	"github.com/debemdeboas/backoffice/internal/upload"
)

// listColumns picks the fields shown per resource. Unknown resources show ids and titles.
var listColumns = map[string][]string{
	api.Categories.Name:       {"title", "description"},
	api.Services.Name:         {"title", "category", "summary"},
	api.Blogs.Name:            {"title", "category", "author", "isPublished"},
	api.Jobs.Name:             {"title", "type", "location", "openings"},
	api.ContactMessages.Name:  {"name", "email", "service"},
	api.DropdownServices.Name: {"name"},
	api.Applications.Name:     {"fullName", "email", "phone", "resume"},
}

const maxCellWidth = 40

func lookupResource(name string) (api.Resource, error) {
	res, ok := api.Lookup(name)
	if !ok {
		return api.Resource{}, fmt.Errorf("unknown resource %q (one of %s)", name, strings.Join(api.Names(), ", "))
	}
	return res, nil
}

func (c *cli) listCmd() *cobra.Command {
	var job string
	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List the records of a resource",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return err
			}
			client, err := c.client()
			if err != nil {
				return err
			}

			var (
				recs  []model.Record
				title = res.Name
			)
			if res.Name == api.Applications.Name {
				if job == "" {
					return fmt.Errorf("--job is required to list applications")
				}
				var jobTitle string
				recs, jobTitle, err = client.Applications(cmd.Context(), job)
				title = "applications for " + jobTitle
			} else {
				recs, err = client.List(cmd.Context(), res, nil)
			}
			if err != nil {
				return err
			}

			fmt.Println(titleStyle.Render(fmt.Sprintf("%s (%d)", title, len(recs))))
			fmt.Println(renderTable(listColumns[res.Name], recs))
			return nil
		},
	}
	cmd.Flags().StringVar(&job, "job", "", "job id whose applications are listed")
	return cmd
}

// renderTable lays records out in aligned columns, id first.
func renderTable(columns []string, recs []model.Record) string {
	if len(columns) == 0 {
		columns = []string{"title"}
	}
	columns = append([]string{"_id"}, columns...)

	cells := make([][]string, len(columns))
	for i, col := range columns {
		cells[i] = append(cells[i], headerStyle.Render(col))
		for _, r := range recs {
			v := r.Str(col)
			if col == "_id" {
				v = r.ID()
			}
			cells[i] = append(cells[i], cellStyle.Render(truncate(v, maxCellWidth)))
		}
	}

	blocks := make([]string, len(cells))
	for i, col := range cells {
		blocks[i] = lipgloss.JoinVertical(lipgloss.Left, col...)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, blocks...)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return err
			}
			if !res.CanDelete() {
				return fmt.Errorf("%s records cannot be deleted", res.Name)
			}
			client, err := c.client()
			if err != nil {
				return err
			}
			if err := client.Delete(cmd.Context(), res, args[1]); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Deleted " + res.Name + " " + args[1]))
			return nil
		},
	}
}

func (c *cli) togglePublishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle-publish <blog-id>",
		Short: "Publish or unpublish a blog post",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := c.client()
			if err != nil {
				return err
			}
			if err := client.TogglePublish(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println(okStyle.Render("Toggled blog " + args[0]))
			return nil
		},
	}
}

func (c *cli) uploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>...",
		Short: "Upload images through the configured gateway and print their URLs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gateway, err := upload.New(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				url, err := gateway.Upload(cmd.Context(), model.ImageFile{Name: path, Data: data})
				if err != nil {
					return err
				}
				fmt.Printf("%s %s\n", path, valueStyle.Render(url))
			}
			return nil
		},
	}
}
