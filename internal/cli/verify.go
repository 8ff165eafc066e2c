package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/ir"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	EnvOptions
	Type string // only verify records of this type
}

// VerifyIssue is one inconsistency found in a record's history.
type VerifyIssue struct {
	Code     string `json:"code"`
	Revision int64  `json:"revision,omitempty"`
	Message  string `json:"message"`
}

// VerifyRecordResult holds the verification result for a single record.
type VerifyRecordResult struct {
	RecordID  int64         `json:"record_id"`
	Type      string        `json:"type"`
	Revisions int           `json:"revisions"`
	Valid     bool          `json:"valid"`
	Issues    []VerifyIssue `json:"issues,omitempty"`
}

// VerifyResult holds the overall verification result.
type VerifyResult struct {
	Records      []VerifyRecordResult `json:"records"`
	TotalRecords int                  `json:"total_records"`
	AllValid     bool                 `json:"all_valid"`
}

// Verification issue codes.
const (
	IssueRevisionGap     = "REVISION_GAP"
	IssueHashMismatch    = "HASH_MISMATCH"
	IssueHeadMismatch    = "HEAD_MISMATCH"
	IssueSeqOrder        = "SEQ_ORDER"
	IssueUnknownType     = "UNKNOWN_TYPE"
	IssueNoRevisions     = "NO_REVISIONS"
	IssueTypeNameChanged = "TYPE_NAME_CHANGED"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the integrity of stored revision histories",
		Long: `Re-read every record's revisions and check that the history is intact:
revision numbers are contiguous from 1, seq numbers increase, each stored
content hash matches the revision's content, and the head row points at
the latest revision.

Exit codes:
  0 - All histories are intact
  1 - One or more records have issues
  2 - Command error (database not found, etc.)

Examples:
  appframe verify --db ./appframe.db
  appframe verify --type article --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, cmd)
		},
	}

	opts.EnvOptions.bind(cmd)
	cmd.Flags().StringVar(&opts.Type, "type", "", "verify records of this type only")

	return cmd
}

func runVerify(opts *VerifyOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	e, err := openEnv(ctx, opts.RootOptions, opts.EnvOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	records, err := e.records()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open records collection", err)
	}
	filter := records.GetFilterCriteria().SetOrderBy("id", "asc")
	if opts.Type != "" {
		filter.SelectCriteria("type_name", opts.Type)
	}
	ids, err := filter.GetIDs(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list records", err)
	}

	result := VerifyResult{
		Records:      make([]VerifyRecordResult, 0, len(ids)),
		TotalRecords: len(ids),
		AllValid:     true,
	}
	for _, id := range ids {
		rec, err := verifyRecord(ctx, e, id)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to verify record %d", id), err)
		}
		if !rec.Valid {
			result.AllValid = false
			e.logger.Warn("record history has issues", zap.Int64("record_id", id), zap.Int("issues", len(rec.Issues)))
		}
		formatter.VerboseLog("Verified %s %d (%d revisions)", rec.Type, rec.RecordID, rec.Revisions)
		result.Records = append(result.Records, rec)
	}

	if formatter.IsJSON() {
		status := "ok"
		if !result.AllValid {
			status = "error"
		}
		if err := formatter.Encode(CLIResponse{Status: status, Data: result}); err != nil {
			return err
		}
	} else {
		printVerifyText(formatter.Writer, result)
	}

	if !result.AllValid {
		return NewExitError(ExitFailure, "revision history verification failed")
	}
	return nil
}

func verifyRecord(ctx context.Context, e *env, id int64) (VerifyRecordResult, error) {
	head, err := e.store.ReadRevisionable(ctx, id)
	if err != nil {
		return VerifyRecordResult{}, err
	}
	revs, err := e.store.ListRevisions(ctx, id)
	if err != nil {
		return VerifyRecordResult{}, err
	}

	res := VerifyRecordResult{RecordID: id, Type: head.TypeName, Revisions: len(revs)}
	addIssue := func(code string, rev int64, format string, args ...any) {
		res.Issues = append(res.Issues, VerifyIssue{Code: code, Revision: rev, Message: fmt.Sprintf(format, args...)})
	}

	if _, err := e.registry.Get(head.TypeName); err != nil {
		addIssue(IssueUnknownType, 0, "type %q is not registered", head.TypeName)
	}
	if len(revs) == 0 {
		addIssue(IssueNoRevisions, 0, "record has no revisions")
	}

	var lastSeq int64
	for i, rev := range revs {
		if want := int64(i + 1); rev.Revision != want {
			addIssue(IssueRevisionGap, rev.Revision, "expected revision %d, found %d", want, rev.Revision)
		}
		if rev.Seq <= lastSeq {
			addIssue(IssueSeqOrder, rev.Revision, "seq %d does not follow %d", rev.Seq, lastSeq)
		}
		lastSeq = rev.Seq
		if rev.TypeName != head.TypeName {
			addIssue(IssueTypeNameChanged, rev.Revision, "revision has type %q, record has %q", rev.TypeName, head.TypeName)
		}

		hash, err := ir.RevisionHash(rev.TypeName, rev.RecordID, rev.Label, rev.State, rev.DataKeys, rev.Parts)
		if err != nil {
			return res, fmt.Errorf("hash revision %d: %w", rev.Revision, err)
		}
		if hash != rev.ContentHash {
			addIssue(IssueHashMismatch, rev.Revision, "stored hash %s, computed %s", rev.ContentHash, hash)
		}
	}

	if n := len(revs); n > 0 {
		latest := revs[n-1]
		if head.CurrentRevision != latest.Revision {
			addIssue(IssueHeadMismatch, latest.Revision, "head points at revision %d", head.CurrentRevision)
		}
		if head.Label != latest.Label || head.State != latest.State {
			addIssue(IssueHeadMismatch, latest.Revision, "head label/state %q/%q differ from latest %q/%q",
				head.Label, head.State, latest.Label, latest.State)
		}
	}

	res.Valid = len(res.Issues) == 0
	return res, nil
}

func printVerifyText(w io.Writer, result VerifyResult) {
	if result.TotalRecords == 0 {
		fmt.Fprintln(w, "No records found in database.")
		return
	}
	for _, rec := range result.Records {
		if rec.Valid {
			fmt.Fprintf(w, "✓ %s %d (%d revisions)\n", rec.Type, rec.RecordID, rec.Revisions)
			continue
		}
		fmt.Fprintf(w, "✗ %s %d (%d revisions)\n", rec.Type, rec.RecordID, rec.Revisions)
		for _, issue := range rec.Issues {
			if issue.Revision > 0 {
				fmt.Fprintf(w, "  r%d %s: %s\n", issue.Revision, issue.Code, issue.Message)
			} else {
				fmt.Fprintf(w, "  %s: %s\n", issue.Code, issue.Message)
			}
		}
	}
	fmt.Fprintln(w)
	if result.AllValid {
		fmt.Fprintf(w, "All %d record(s) verified.\n", result.TotalRecords)
	} else {
		fmt.Fprintln(w, "Verification failed.")
	}
}

