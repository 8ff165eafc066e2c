package api

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/roach88/appframe/internal/apiparam"
	"github.com/roach88/appframe/internal/criteria"
	"github.com/roach88/appframe/internal/dbhelper"
	"github.com/roach88/appframe/internal/ir"
	"github.com/roach88/appframe/internal/revisionable"
)

// Built-in method names.
const (
	MethodListRecords      = "ListRecords"
	MethodGetRecord        = "GetRecord"
	MethodListRevisions    = "ListRevisions"
	MethodCompareRevisions = "CompareRevisions"
	MethodDescribeTypes    = "DescribeTypes"
	MethodUpdateRecord     = "UpdateRecord"
)

// maxListLimit bounds ListRecords pages.
const maxListLimit = 500

// NewRecordsCollection returns the collection over the revisionables head
// table that ListRecords and GetRecord query.
func NewRecordsCollection(db *sqlx.DB, logger *zap.Logger) (*dbhelper.Collection, error) {
	return dbhelper.NewCollection(db, dbhelper.CollectionSpec{
		Table:          "revisionables",
		RecordTypeName: "record",
		SearchColumns:  []string{"label"},
		DefaultOrder:   []criteria.Order{{Column: "label"}},
	}, logger)
}

// Builtins serves the built-in record methods. records is a collection
// over the revisionables head table.
type Builtins struct {
	manager *revisionable.Manager
	records *dbhelper.Collection
}

// NewBuiltins creates the built-in methods.
func NewBuiltins(manager *revisionable.Manager, records *dbhelper.Collection) *Builtins {
	return &Builtins{manager: manager, records: records}
}

// Register registers every built-in method on s.
func (b *Builtins) Register(s *Server) error {
	methods, err := b.Methods()
	if err != nil {
		return err
	}
	for _, m := range methods {
		if err := s.Register(m); err != nil {
			return err
		}
	}
	return nil
}

// Methods returns the built-in methods.
func (b *Builtins) Methods() ([]Method, error) {
	limitRule, err := apiparam.NewExprRule(
		fmt.Sprintf("limit >= 1 && limit <= %d", maxListLimit),
		fmt.Sprintf("limit must be between 1 and %d", maxListLimit),
		"limit")
	if err != nil {
		return nil, err
	}
	offsetRule, err := apiparam.NewExprRule("offset >= 0", "offset must not be negative", "offset")
	if err != nil {
		return nil, err
	}
	compareRule, err := apiparam.NewExprRule("from != to", "from and to must be different revisions", "from", "to")
	if err != nil {
		return nil, err
	}
	updateRule, err := apiparam.NewExprRule("data != nil || label != nil || state != nil",
		"one of data, label, state is required", "data", "label", "state")
	if err != nil {
		return nil, err
	}

	return []Method{
		MethodFunc{
			MethodName: MethodListRecords,
			Def: apiparam.Definition{
				Params: []apiparam.Param{
					{Name: "type", Type: apiparam.TypeAlias, Description: "record type name"},
					{Name: "state", Type: apiparam.TypeString, Description: "only records in this state"},
					{Name: "search", Type: apiparam.TypeString, Description: "label search term"},
					{Name: "order", Type: apiparam.TypeEnum, Values: []string{"asc", "desc"}, Default: "asc"},
					{Name: "offset", Type: apiparam.TypeInt, Default: int64(0)},
					{Name: "limit", Type: apiparam.TypeInt, Default: int64(50)},
				},
				Rules: []apiparam.Rule{limitRule, offsetRule},
			},
			Fn: b.listRecords,
		},
		MethodFunc{
			MethodName: MethodGetRecord,
			Def: apiparam.Definition{
				Params: []apiparam.Param{
					b.recordIDParam(false),
					{Name: "label", Type: apiparam.TypeString, Lookup: b.lookupLabel, Description: "record label, instead of record_id"},
					{Name: "revision", Type: apiparam.TypeInt, Default: int64(0), Description: "revision to read, 0 for the latest"},
				},
				Rules: []apiparam.Rule{apiparam.OrRule{Of: []string{"record_id", "label"}}},
			},
			Fn: b.getRecord,
		},
		MethodFunc{
			MethodName: MethodListRevisions,
			Def: apiparam.Definition{
				Params: []apiparam.Param{b.recordIDParam(true)},
			},
			Fn: b.listRevisions,
		},
		MethodFunc{
			MethodName: MethodCompareRevisions,
			Def: apiparam.Definition{
				Params: []apiparam.Param{
					b.recordIDParam(true),
					{Name: "from", Type: apiparam.TypeInt, Required: true},
					{Name: "to", Type: apiparam.TypeInt, Required: true},
				},
				Rules: []apiparam.Rule{compareRule},
			},
			Fn: b.compareRevisions,
		},
		MethodFunc{
			MethodName: MethodDescribeTypes,
			Fn:         b.describeTypes,
		},
		MethodFunc{
			MethodName: MethodUpdateRecord,
			Def: apiparam.Definition{
				Params: []apiparam.Param{
					b.recordIDParam(true),
					{Name: "data", Type: apiparam.TypeJSON, Description: "data keys to set, as a JSON object"},
					{Name: "label", Type: apiparam.TypeString},
					{Name: "state", Type: apiparam.TypeString},
					{Name: "base_revision", Type: apiparam.TypeInt, Description: "fail with a conflict unless the record is at this revision"},
				},
				Rules: []apiparam.Rule{updateRule},
			},
			Fn: b.updateRecord,
		},
	}, nil
}

func (b *Builtins) recordIDParam(required bool) apiparam.Param {
	return apiparam.Param{Name: "record_id", Type: apiparam.TypeID, Required: required}
}

// lookupLabel resolves a label to the ID of the single record carrying it.
func (b *Builtins) lookupLabel(ctx context.Context, v any) (any, error) {
	label, _ := v.(string)
	ids, err := b.records.GetFilterCriteria().SelectCriteria("label", label).GetIDs(ctx)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, fmt.Errorf("no record is labelled %q", label)
	case 1:
		return ids[0], nil
	}
	return nil, fmt.Errorf("%d records are labelled %q", len(ids), label)
}

// RecordSummary is a listed record.
type RecordSummary struct {
	ID              int64  `json:"id"`
	TypeName        string `json:"type_name"`
	Label           string `json:"label"`
	State           string `json:"state"`
	CurrentRevision int64  `json:"current_revision"`
}

// RecordList is a page of records.
type RecordList struct {
	Total int             `json:"total"`
	Items []RecordSummary `json:"items"`
}

func (b *Builtins) listRecords(ctx context.Context, p *apiparam.Result) (any, error) {
	fc := b.records.GetFilterCriteria()
	if p.Has("type") {
		fc.SelectCriteria("type_name", p.String("type"))
	}
	if p.Has("state") {
		fc.SelectCriteria("state", p.String("state"))
	}
	fc.SetSearch(p.String("search"))
	fc.SetOrderBy("label", p.String("order"))

	total, err := fc.CountItems(ctx)
	if err != nil {
		return nil, err
	}
	fc.SetLimit(int(p.Int("offset")), int(p.Int("limit")))
	items, err := fc.GetItems(ctx)
	if err != nil {
		return nil, err
	}

	out := RecordList{Total: total, Items: make([]RecordSummary, 0, len(items))}
	for _, rec := range items {
		out.Items = append(out.Items, RecordSummary{
			ID:              rec.ID(),
			TypeName:        rec.GetDataKeyString("type_name"),
			Label:           rec.GetDataKeyString("label"),
			State:           rec.GetDataKeyString("state"),
			CurrentRevision: rec.GetDataKeyInt("current_revision"),
		})
	}
	return out, nil
}

// resolvedRecordID returns record_id, or the ID the label lookup produced.
func resolvedRecordID(p *apiparam.Result) int64 {
	if p.Has("record_id") {
		return p.Int("record_id")
	}
	return p.Int("label")
}

func (b *Builtins) getRecord(ctx context.Context, p *apiparam.Result) (any, error) {
	r, err := b.manager.Load(ctx, resolvedRecordID(p))
	if err != nil {
		return nil, err
	}
	if rev := p.Int("revision"); rev > 0 {
		if err := r.SelectRevision(ctx, rev); err != nil {
			return nil, err
		}
	}
	return r.Snapshot(), nil
}

// RevisionSummary is one entry of a record's history.
type RevisionSummary struct {
	Revision    int64  `json:"revision"`
	Label       string `json:"label"`
	State       string `json:"state"`
	Author      string `json:"author"`
	Comments    string `json:"comments"`
	ContentHash string `json:"content_hash"`
	CreatedAt   string `json:"created_at"`
}

func (b *Builtins) listRevisions(ctx context.Context, p *apiparam.Result) (any, error) {
	r, err := b.manager.Load(ctx, p.Int("record_id"))
	if err != nil {
		return nil, err
	}
	revs, err := r.Revisions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RevisionSummary, 0, len(revs))
	for _, rev := range revs {
		out = append(out, RevisionSummary{
			Revision:    rev.Revision,
			Label:       rev.Label,
			State:       rev.State,
			Author:      rev.Author,
			Comments:    rev.Comments,
			ContentHash: rev.ContentHash,
			CreatedAt:   rev.CreatedAt,
		})
	}
	return out, nil
}

// Comparison is the result of CompareRevisions.
type Comparison struct {
	RecordID int64           `json:"record_id"`
	From     int64           `json:"from"`
	To       int64           `json:"to"`
	Changes  json.RawMessage `json:"changes"`
}

func (b *Builtins) compareRevisions(ctx context.Context, p *apiparam.Result) (any, error) {
	id, from, to := p.Int("record_id"), p.Int("from"), p.Int("to")
	patch, err := revisionable.RevisionChanges(ctx, b.manager.Store(), id, from, to)
	if err != nil {
		return nil, err
	}
	return Comparison{RecordID: id, From: from, To: to, Changes: patch}, nil
}

func (b *Builtins) describeTypes(_ context.Context, _ *apiparam.Result) (any, error) {
	return b.manager.Registry().All(), nil
}

// updateRecord applies the given changes in one transaction by the
// request's user.
func (b *Builtins) updateRecord(ctx context.Context, p *apiparam.Result) (any, error) {
	r, err := b.manager.Load(ctx, p.Int("record_id"))
	if err != nil {
		return nil, err
	}
	if p.Has("base_revision") && p.Int("base_revision") != r.Revision() {
		return nil, &revisionable.Error{
			Code:     revisionable.ErrCodeRevisionConflict,
			Message:  fmt.Sprintf("record is at revision %d, not %d", r.Revision(), p.Int("base_revision")),
			TypeName: r.TypeName(),
			RecordID: r.ID(),
		}
	}

	data, isObject := p.JSON("data").(ir.IRObject)
	if p.Has("data") && !isObject {
		return nil, apiparam.ValidationErrors{{
			Param: "data", Code: apiparam.CodeInvalid, Message: "must be a JSON object",
		}}
	}

	if err := r.StartCurrentUserTransaction(ctx); err != nil {
		return nil, err
	}
	if err := applyUpdate(r, data, p); err != nil {
		if rbErr := r.RollbackTransaction(ctx); rbErr != nil {
			return nil, fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return nil, err
	}
	if _, err := r.EndTransaction(ctx); err != nil {
		return nil, err
	}
	return r.Snapshot(), nil
}

func applyUpdate(r *revisionable.Revisionable, data ir.IRObject, p *apiparam.Result) error {
	for _, key := range data.SortedKeys() {
		if _, err := r.SetDataKey(key, data[key]); err != nil {
			return err
		}
	}
	if p.Has("label") {
		if _, err := r.SetLabel(p.String("label")); err != nil {
			return err
		}
	}
	if p.Has("state") {
		if _, err := r.SetState(p.String("state")); err != nil {
			return err
		}
	}
	return nil
}
