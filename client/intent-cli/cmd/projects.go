package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"IntentCode/backend/go/pkg/filetree"

	"github.com/spf13/cobra"
)

var intentFiles []string

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List your projects",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		var resp struct {
			Projects         []project `json:"projects"`
			CurrentProjectID string    `json:"current_project_id"`
		}
		if err := c.do(cmd.Context(), "GET", "/api/v1/projects?refresh=true", nil, &resp); err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tTITLE\tFILES\tUPDATED")
		for _, p := range resp.Projects {
			marker := ""
			if p.ID == resp.CurrentProjectID {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", marker, p.ID, p.Title, len(p.Files), p.UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree [project-id]",
	Short: "Print the file tree of a project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		var resp struct {
			Items []*filetree.Item `json:"items"`
		}
		if err := c.do(cmd.Context(), "GET", "/api/v1/projects/"+args[0]+"/tree", nil, &resp); err != nil {
			return err
		}
		return filetree.Render(os.Stdout, resp.Items, nil)
	},
}

var intendCmd = &cobra.Command{
	Use:   "intend [intention]",
	Short: "Create a project from a natural-language intention",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := readLocalFiles(intentFiles)
		if err != nil {
			return err
		}
		c := newClient()

		body := map[string]interface{}{"intention": strings.Join(args, " "), "files": files}
		var p project
		if err := c.do(cmd.Context(), "POST", "/api/v1/intentions", body, &p); err != nil {
			return err
		}
		fmt.Printf("Project created: %s (%s)\n", p.Title, p.ID)
		fmt.Printf("To browse it, run: intent-cli tree %s\n", p.ID)
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export [project-id]",
	Short: "Export a project as a ZIP and print the download link",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient()
		var res struct {
			URL       string `json:"url"`
			Files     int    `json:"files"`
			ExpiresAt string `json:"expires_at"`
		}
		if err := c.do(cmd.Context(), "POST", "/api/v1/projects/"+args[0]+"/export", nil, &res); err != nil {
			return err
		}
		fmt.Printf("Exported %d files. Link valid until %s:\n%s\n", res.Files, res.ExpiresAt, res.URL)
		return nil
	},
}

func init() {
	intendCmd.Flags().StringSliceVarP(&intentFiles, "file", "f", nil, "local files to seed the project with")
	rootCmd.AddCommand(projectsCmd, treeCmd, intendCmd, exportCmd)
}

// readLocalFiles loads local files as project files rooted at their base name.
func readLocalFiles(paths []string) ([]file, error) {
	files := make([]file, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		name := filetree.BaseName(p)
		files = append(files, file{
			Name:    name,
			Path:    "/" + name,
			Type:    filetree.InferType(name, data),
			Content: string(data),
		})
	}
	return files, nil
}
