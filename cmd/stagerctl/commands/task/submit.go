package task

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/marmos91/stager/cmd/stagerctl/cmdutil"
	"github.com/marmos91/stager/internal/cli/output"
	"github.com/marmos91/stager/pkg/stager/models"
)

var (
	submitSource       string
	submitCallbackID   string
	submitSourceTaskID string
	submitFiles        []string
	submitFromFile     string
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new task",
	Long: `Submit a staging task. Files are given as STORAGE_ELEMENT:LFN pairs,
or read from a JSON request document.

Examples:
  # Two files on one storage element
  stagerctl task submit --source atlas --callback-id cb-1 \
    --file TAPE:/data/run1/file1 --file TAPE:/data/run1/file2

  # From a request document
  stagerctl task submit --from-file request.json`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitSource, "source", "", "Submitting system")
	submitCmd.Flags().StringVar(&submitCallbackID, "callback-id", "", "Identifier passed back on completion")
	submitCmd.Flags().StringVar(&submitSourceTaskID, "source-task-id", "", "Task id in the submitting system")
	submitCmd.Flags().StringArrayVar(&submitFiles, "file", nil, "File to stage as STORAGE_ELEMENT:LFN (repeatable)")
	submitCmd.Flags().StringVar(&submitFromFile, "from-file", "", "Read the request from a JSON file ('-' for stdin)")
}

// parseFiles groups STORAGE_ELEMENT:LFN pairs by storage element. The LFN may
// itself contain colons.
func parseFiles(pairs []string) (map[string][]string, error) {
	files := make(map[string][]string)
	for _, pair := range pairs {
		se, lfn, ok := strings.Cut(pair, ":")
		if !ok || se == "" || lfn == "" {
			return nil, fmt.Errorf("invalid --file %q: expected STORAGE_ELEMENT:LFN", pair)
		}
		files[se] = append(files[se], lfn)
	}
	return files, nil
}

// buildRequest assembles the request from the flags, with flags overriding
// fields of the request document.
func buildRequest() (models.TaskRequest, error) {
	var req models.TaskRequest
	if submitFromFile != "" {
		var (
			data []byte
			err  error
		)
		if submitFromFile == "-" {
			data, err = io.ReadAll(os.Stdin)
		} else {
			data, err = os.ReadFile(submitFromFile)
		}
		if err != nil {
			return req, fmt.Errorf("failed to read request: %w", err)
		}
		if err := json.Unmarshal(data, &req); err != nil {
			return req, fmt.Errorf("invalid request document: %w", err)
		}
	}

	if submitSource != "" {
		req.Source = submitSource
	}
	if submitCallbackID != "" {
		req.CallbackID = submitCallbackID
	}
	if submitSourceTaskID != "" {
		req.SourceTaskID = &submitSourceTaskID
	}
	if len(submitFiles) > 0 {
		files, err := parseFiles(submitFiles)
		if err != nil {
			return req, err
		}
		if req.Files == nil {
			req.Files = make(map[string][]string)
		}
		for se, lfns := range files {
			req.Files[se] = append(req.Files[se], lfns...)
		}
	}

	if err := req.Validate(); err != nil {
		return req, err
	}
	return req, nil
}

type submitResult struct {
	TaskID string `json:"task_id" yaml:"task_id"`
	Files  int    `json:"files" yaml:"files"`
}

func runSubmit(cmd *cobra.Command, args []string) error {
	req, err := buildRequest()
	if err != nil {
		return err
	}

	client, err := cmdutil.GetClient()
	if err != nil {
		return err
	}

	taskID, err := client.SubmitTask(req)
	if err != nil {
		return fmt.Errorf("failed to submit task: %w", err)
	}

	result := submitResult{TaskID: taskID, Files: req.FileCount()}
	format, err := cmdutil.GetOutputFormatParsed()
	if err != nil {
		return err
	}
	if format != output.FormatTable {
		return cmdutil.PrintResource(os.Stdout, result, nil)
	}
	cmdutil.PrintSuccess(fmt.Sprintf("Task submitted with %d file(s)", result.Files))
	fmt.Println(taskID)
	return nil
}
