package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/revisionable"
)

// RecordSummary describes a record at one revision.
type RecordSummary struct {
	ID          int64       `json:"id"`
	Type        string      `json:"type"`
	Revision    int64       `json:"revision"`
	Label       string      `json:"label"`
	State       string      `json:"state"`
	DataKeys    ir.IRObject `json:"data_keys"`
	ContentHash string      `json:"content_hash"`
}

func summarize(rev ir.RevisionRecord) RecordSummary {
	return RecordSummary{
		ID:          rev.RecordID,
		Type:        rev.TypeName,
		Revision:    rev.Revision,
		Label:       rev.Label,
		State:       rev.State,
		DataKeys:    rev.DataKeys,
		ContentHash: rev.ContentHash,
	}
}

func printSummary(w io.Writer, s RecordSummary) {
	fmt.Fprintf(w, "%s %d revision %d %q (%s)\n", s.Type, s.ID, s.Revision, s.Label, s.State)
	for _, k := range s.DataKeys.SortedKeys() {
		data, err := ir.MarshalIRValue(s.DataKeys[k])
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "  %s = %s\n", k, data)
	}
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	EnvOptions
	Label  string
	Author string
	Set    []string // key=value data key assignments
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <type>",
		Short: "Create a record",
		Long: `Create a record of a registered type. Revision 1 holds the type's
defaults. Each --set assignment is then applied in a second transaction;
values are parsed as JSON and fall back to plain strings.

Examples:
  appframe create article --label "Launch" --author alice
  appframe create article --label "Launch" --set views=3 --set title='"Hello"'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}

	opts.EnvOptions.bind(cmd)
	cmd.Flags().StringVar(&opts.Label, "label", "", "record label")
	cmd.Flags().StringVar(&opts.Author, "author", "cli", "transaction author")
	cmd.Flags().StringArrayVar(&opts.Set, "set", nil, "set a data key (key=value, repeatable)")

	return cmd
}

func runCreate(opts *CreateOptions, typeName string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	assignments, err := parseAssignments(opts.Set)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx, opts.RootOptions, opts.EnvOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	rtype, err := e.registry.Get(typeName)
	if err != nil {
		return failRevisionable(formatter, err)
	}
	if err := checkAssignments(formatter, rtype, assignments); err != nil {
		return err
	}

	r, err := e.manager.Create(ctx, typeName, opts.Label, opts.Author)
	if err != nil {
		return failRevisionable(formatter, err)
	}

	if len(assignments) > 0 {
		if err := applyAssignments(ctx, r, opts.Author, assignments, e.logger); err != nil {
			if delErr := e.manager.Delete(ctx, r.ID()); delErr != nil {
				e.logger.Warn("failed to remove record after failed create",
					zap.Int64("record_id", r.ID()), zap.Error(delErr))
			}
			return failRevisionable(formatter, err)
		}
	}

	summary := summarize(r.Snapshot())
	return formatter.Render(summary, func(w io.Writer) {
		fmt.Fprint(w, "✓ Created ")
		printSummary(w, summary)
	})
}

// checkAssignments rejects keys the type does not declare and values that
// do not match the declared key type.
func checkAssignments(f *OutputFormatter, rtype ir.RecordType, assignments map[string]ir.IRValue) error {
	for _, key := range sortedKeys(assignments) {
		def, ok := rtype.DataKey(key)
		if !ok {
			return f.Fail(ExitFailure, string(revisionable.ErrCodeUnknownDataKey),
				fmt.Sprintf("type %s has no data key %q", rtype.Name, key), nil)
		}
		if value := assignments[key]; !def.AcceptsValue(value) {
			return f.Fail(ExitFailure, string(revisionable.ErrCodeInvalidValue),
				fmt.Sprintf("data key %q expects %s, got %s", key, def.Type, ir.TypeName(value)), nil)
		}
	}
	return nil
}

// applyAssignments sets the assignments in one transaction.
func applyAssignments(ctx context.Context, r *revisionable.Revisionable, author string, assignments map[string]ir.IRValue, logger *zap.Logger) error {
	if err := r.StartTransaction(ctx, author, "initial values"); err != nil {
		return err
	}
	for _, key := range sortedKeys(assignments) {
		if _, err := r.SetDataKey(key, assignments[key]); err != nil {
			if rbErr := r.RollbackTransaction(ctx); rbErr != nil {
				logger.Warn("rollback after failed assignment", zap.Int64("record_id", r.ID()), zap.Error(rbErr))
			}
			return err
		}
	}
	_, err := r.EndTransaction(ctx)
	return err
}

// parseAssignments parses key=value pairs. Values that are not valid JSON
// are taken as strings.
func parseAssignments(pairs []string) (map[string]ir.IRValue, error) {
	out := make(map[string]ir.IRValue, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid assignment %q: want key=value", pair))
		}
		var value ir.IRValue = ir.IRString(raw)
		if json.Valid([]byte(raw)) {
			if v, err := ir.UnmarshalIRValue([]byte(raw)); err == nil {
				value = v
			}
		}
		out[key] = value
	}
	return out, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RevisionsOptions holds flags for the revisions command.
type RevisionsOptions struct {
	*RootOptions
	EnvOptions
	Events bool // include the transaction and event log
}

// RevisionEntry is one committed revision.
type RevisionEntry struct {
	Revision      int64    `json:"revision"`
	Author        string   `json:"author"`
	Comments      string   `json:"comments"`
	Label         string   `json:"label"`
	State         string   `json:"state"`
	TransactionID string   `json:"transaction_id"`
	Seq           int64    `json:"seq"`
	CreatedAt     string   `json:"created_at"`
	ContentHash   string   `json:"content_hash"`
	Changes       []string `json:"changes,omitempty"`
}

// TransactionEntry is one logged transaction.
type TransactionEntry struct {
	TransactionID string `json:"transaction_id"`
	Author        string `json:"author"`
	Status        string `json:"status"`
	BaseRevision  int64  `json:"base_revision"`
	Revision      int64  `json:"revision,omitempty"`
	Seq           int64  `json:"seq"`
}

// EventEntry is one persisted lifecycle event.
type EventEntry struct {
	Seq           int64  `json:"seq"`
	Type          string `json:"type"`
	TransactionID string `json:"transaction_id"`
	Revision      int64  `json:"revision,omitempty"`
}

// RevisionsResult is the history of one record.
type RevisionsResult struct {
	RecordID     int64              `json:"record_id"`
	Type         string             `json:"type"`
	Current      int64              `json:"current_revision"`
	Revisions    []RevisionEntry    `json:"revisions"`
	Transactions []TransactionEntry `json:"transactions,omitempty"`
	Events       []EventEntry       `json:"events,omitempty"`
}

// NewRevisionsCommand creates the revisions command.
func NewRevisionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RevisionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "revisions <record-id>",
		Short: "Show the revision history of a record",
		Long: `Show the committed revisions of a record, oldest first, with the
fields each revision changed. With --events, also show every logged
transaction (including empty and rolled back ones) and the lifecycle
events in seq order.

Examples:
  appframe revisions 12
  appframe revisions 12 --events --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRevisions(opts, args[0], cmd)
		},
	}

	opts.EnvOptions.bind(cmd)
	cmd.Flags().BoolVar(&opts.Events, "events", false, "include transactions and events")

	return cmd
}

func runRevisions(opts *RevisionsOptions, arg string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	id, err := parseID("record id", arg)
	if err != nil {
		return err
	}

	e, err := openEnv(ctx, opts.RootOptions, opts.EnvOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	r, err := e.manager.Load(ctx, id)
	if err != nil {
		return failRevisionable(formatter, err)
	}
	revs, err := r.Revisions(ctx)
	if err != nil {
		return failRevisionable(formatter, err)
	}

	result := RevisionsResult{RecordID: id, Type: r.TypeName(), Current: r.Revision()}
	var prev *ir.RevisionRecord
	for i := range revs {
		rev := revs[i]
		result.Revisions = append(result.Revisions, RevisionEntry{
			Revision:      rev.Revision,
			Author:        rev.Author,
			Comments:      rev.Comments,
			Label:         rev.Label,
			State:         rev.State,
			TransactionID: rev.TransactionID,
			Seq:           rev.Seq,
			CreatedAt:     rev.CreatedAt,
			ContentHash:   rev.ContentHash,
			Changes:       revisionChanges(prev, rev),
		})
		prev = &revs[i]
	}

	if opts.Events {
		txns, err := e.store.ReadTransactions(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read transactions", err)
		}
		for _, t := range txns {
			result.Transactions = append(result.Transactions, TransactionEntry{
				TransactionID: t.ID,
				Author:        t.Author,
				Status:        t.Status,
				BaseRevision:  t.BaseRevision,
				Revision:      t.Revision,
				Seq:           t.Seq,
			})
		}
		events, err := e.store.ReadEvents(ctx, id)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read events", err)
		}
		for _, ev := range events {
			result.Events = append(result.Events, EventEntry{
				Seq:           ev.Seq,
				Type:          ev.Event,
				TransactionID: ev.TransactionID,
				Revision:      ev.Revision,
			})
		}
	}

	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s %d (current revision %d)\n\n", result.Type, result.RecordID, result.Current)
		for _, rev := range result.Revisions {
			fmt.Fprintf(w, "r%d  seq %d  %s  %s\n", rev.Revision, rev.Seq, rev.Author, rev.CreatedAt)
			if rev.Comments != "" {
				fmt.Fprintf(w, "    %s\n", rev.Comments)
			}
			if len(rev.Changes) > 0 {
				fmt.Fprintf(w, "    changed: %s\n", strings.Join(rev.Changes, ", "))
			}
		}
		if len(result.Transactions) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Transactions:")
			for _, t := range result.Transactions {
				fmt.Fprintf(w, "  seq %d  %s  %s  base r%d\n", t.Seq, t.TransactionID, t.Status, t.BaseRevision)
			}
		}
		if len(result.Events) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Events:")
			for _, ev := range result.Events {
				fmt.Fprintf(w, "  seq %d  %s  %s\n", ev.Seq, ev.Type, ev.TransactionID)
			}
		}
	})
}

// revisionChanges lists the fields that differ from the previous revision.
// The first revision reports none.
func revisionChanges(prev *ir.RevisionRecord, rev ir.RevisionRecord) []string {
	if prev == nil {
		return nil
	}
	var changes []string
	if prev.Label != rev.Label {
		changes = append(changes, "label")
	}
	if prev.State != rev.State {
		changes = append(changes, "state")
	}
	changes = append(changes, diffKeys("data_keys", prev.DataKeys, rev.DataKeys)...)
	changes = append(changes, diffKeys("parts", prev.Parts, rev.Parts)...)
	return changes
}

func diffKeys(prefix string, a, b ir.IRObject) []string {
	seen := make(map[string]bool, len(a)+len(b))
	for k := range a {
		seen[k] = true
	}
	for k := range b {
		seen[k] = true
	}
	var out []string
	for _, k := range sortedKeys(seen) {
		av, aok := a[k]
		bv, bok := b[k]
		if aok != bok || (aok && !ir.Equal(av, bv)) {
			out = append(out, prefix+"."+k)
		}
	}
	return out
}

// CopyOptions holds flags for the copy command.
type CopyOptions struct {
	*RootOptions
	EnvOptions
	Revision  int64
	Skip      []string
	CopyLabel bool
	Author    string
}

// CopyResult reports a completed copy.
type CopyResult struct {
	Source         int64         `json:"source"`
	SourceRevision int64         `json:"source_revision"`
	Target         RecordSummary `json:"target"`
}

// NewCopyCommand creates the copy command.
func NewCopyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CopyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "copy <source-id> <target-id>",
		Short: "Copy a revision of one record into another",
		Long: `Copy a revision of a record into another record of the same type, as a
new revision of the target. Data keys are copied first, then every part
the type declares. The label is copied only with --copy-label; the state
is never copied.

Examples:
  appframe copy 3 7
  appframe copy 3 7 --revision 2 --skip views --copy-label`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCopy(opts, args[0], args[1], cmd)
		},
	}

	opts.EnvOptions.bind(cmd)
	cmd.Flags().Int64Var(&opts.Revision, "revision", 0, "source revision to copy (default latest)")
	cmd.Flags().StringSliceVar(&opts.Skip, "skip", nil, "data keys to leave unchanged on the target")
	cmd.Flags().BoolVar(&opts.CopyLabel, "copy-label", false, "copy the label too")
	cmd.Flags().StringVar(&opts.Author, "author", "cli", "transaction author")

	return cmd
}

func runCopy(opts *CopyOptions, srcArg, dstArg string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	formatter := opts.formatter(cmd)

	src, err := parseID("source id", srcArg)
	if err != nil {
		return err
	}
	dst, err := parseID("target id", dstArg)
	if err != nil {
		return err
	}
	if opts.Revision < 0 {
		return NewExitError(ExitCommandError, "revision must not be negative")
	}

	e, err := openEnv(ctx, opts.RootOptions, opts.EnvOptions)
	if err != nil {
		return err
	}
	defer e.Close()

	copier := revisionable.NewCopier(nil).
		SkipDataKeys(opts.Skip...).
		DefaultPartCopier(revisionable.CopyPartValue)
	if opts.CopyLabel {
		copier.CopyLabel()
	}

	// Pin the latest source revision before the copy writes anything, so a
	// record copied onto itself reports the revision it was copied from.
	rev := opts.Revision
	if rev == 0 {
		if latest, err := e.store.ReadLatestRevision(ctx, src); err == nil {
			rev = latest.Revision
		}
	}

	target, err := e.manager.CopyRevision(ctx, src, rev, dst, opts.Author, copier)
	if err != nil {
		return failRevisionable(formatter, err)
	}

	result := CopyResult{Source: src, SourceRevision: rev, Target: summarize(target.Snapshot())}

	return formatter.Render(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ Copied record %d revision %d into ", result.Source, result.SourceRevision)
		printSummary(w, result.Target)
	})
}
