package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the durable persistence layer for runs, audit entries,
// approvals, product drafts and inbound message events.
//
// Every write commits before returning so that a crash at any point
// leaves a consistent prefix of the run visible on disk. Audit entry
// ids are assigned by SQLite AUTOINCREMENT and are strictly monotonic.
type Store struct {
	db *sql.DB
}

// Open opens (and if needed creates) the SQLite database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=FULL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init store schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TIMESTAMP NOT NULL,
		command_text TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'created',
		summary TEXT NOT NULL DEFAULT '',
		result_json TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);

	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TIMESTAMP NOT NULL,
		run_id INTEGER,
		step_index INTEGER NOT NULL DEFAULT 0,
		event_type TEXT NOT NULL DEFAULT 'step',
		message TEXT NOT NULL DEFAULT '',
		payload TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_audit_run ON audit_log(run_id);

	CREATE TABLE IF NOT EXISTS approvals (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TIMESTAMP NOT NULL,
		decided_at TIMESTAMP,
		run_id INTEGER,
		status TEXT NOT NULL DEFAULT 'pending',
		risk_level TEXT NOT NULL DEFAULT 'high',
		tool_name TEXT NOT NULL DEFAULT '',
		tool_args TEXT NOT NULL DEFAULT '{}',
		decision_note TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);

	CREATE TABLE IF NOT EXISTS product_drafts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TIMESTAMP NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		price REAL NOT NULL DEFAULT 0,
		currency TEXT NOT NULL DEFAULT 'USD',
		status TEXT NOT NULL DEFAULT 'draft',
		external_id TEXT NOT NULL DEFAULT '',
		meta TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS message_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TIMESTAMP NOT NULL,
		channel TEXT NOT NULL DEFAULT 'unknown',
		external_id TEXT NOT NULL DEFAULT '',
		from_user TEXT NOT NULL DEFAULT '',
		text TEXT NOT NULL DEFAULT '',
		processed INTEGER NOT NULL DEFAULT 0,
		meta TEXT NOT NULL DEFAULT '{}'
	);
	CREATE INDEX IF NOT EXISTS idx_messages_processed ON message_events(processed);
	`
	_, err := s.db.Exec(schema)
	return err
}

func marshalJSON(v map[string]any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

func unmarshalJSON(raw string) map[string]any {
	out := map[string]any{}
	if raw == "" {
		return out
	}
	_ = json.Unmarshal([]byte(raw), &out)
	return out
}

// --- runs ---

// RunRecord is the persisted record of one end-to-end command invocation.
type RunRecord struct {
	ID          int64          `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	CommandText string         `json:"command_text"`
	Status      string         `json:"status"`
	Summary     string         `json:"summary"`
	Result      map[string]any `json:"result_json"`
}

// Run status values.
const (
	RunStatusCreated   = "created"
	RunStatusCompleted = "completed"
)

// CreateRun inserts a run with status "created" and returns it.
func (s *Store) CreateRun(ctx context.Context, commandText string) (*RunRecord, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (created_at, command_text, status, summary, result_json) VALUES (?, ?, ?, '', '{}')`,
		now, commandText, RunStatusCreated,
	)
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create run id: %w", err)
	}
	return &RunRecord{
		ID:          id,
		CreatedAt:   now,
		CommandText: commandText,
		Status:      RunStatusCreated,
		Result:      map[string]any{},
	}, nil
}

// CompleteRun transitions a run to "completed" with its summary and result.
func (s *Store) CompleteRun(ctx context.Context, id int64, summary string, result map[string]any) error {
	raw, err := marshalJSON(result)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, summary = ?, result_json = ? WHERE id = ?`,
		RunStatusCompleted, summary, raw, id,
	)
	if err != nil {
		return fmt.Errorf("complete run %d: %w", id, err)
	}
	return nil
}

// GetRun fetches one run by id.
func (s *Store) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, command_text, status, summary, result_json FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, command_text, status, summary, result_json FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*RunRecord, error) {
	var run RunRecord
	var raw string
	if err := row.Scan(&run.ID, &run.CreatedAt, &run.CommandText, &run.Status, &run.Summary, &raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found")
		}
		return nil, fmt.Errorf("scan run: %w", err)
	}
	run.Result = unmarshalJSON(raw)
	return &run, nil
}

// --- audit log ---

// AuditEntry is one append-only event trail record. Entries are never
// updated or deleted; id order is the source of truth for what happened.
type AuditEntry struct {
	ID        int64          `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	RunID     *int64         `json:"run_id"`
	StepIndex int            `json:"step_index"`
	EventType string         `json:"event_type"`
	Message   string         `json:"message"`
	Payload   map[string]any `json:"payload"`
}

// Audit event types.
const (
	AuditEventSystem   = "system"
	AuditEventStep     = "step"
	AuditEventApproval = "approval"
	AuditEventWebhook  = "webhook"
)

// AppendAudit appends one audit entry and commits it before returning.
func (s *Store) AppendAudit(ctx context.Context, entry AuditEntry) (int64, error) {
	raw, err := marshalJSON(entry.Payload)
	if err != nil {
		return 0, err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (created_at, run_id, step_index, event_type, message, payload) VALUES (?, ?, ?, ?, ?, ?)`,
		now, entry.RunID, entry.StepIndex, entry.EventType, entry.Message, raw,
	)
	if err != nil {
		return 0, fmt.Errorf("append audit: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("append audit id: %w", err)
	}
	return id, nil
}

// AuditFilter narrows audit listing.
type AuditFilter struct {
	RunID *int64
	Limit int
}

// ListAudit returns recent audit entries, newest first.
func (s *Store) ListAudit(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, created_at, run_id, step_index, event_type, message, payload FROM audit_log`
	args := []any{}
	if filter.RunID != nil {
		query += ` WHERE run_id = ?`
		args = append(args, *filter.RunID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		var raw string
		if err := rows.Scan(&e.ID, &e.CreatedAt, &e.RunID, &e.StepIndex, &e.EventType, &e.Message, &raw); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Payload = unmarshalJSON(raw)
		out = append(out, &e)
	}
	return out, rows.Err()
}

// --- approvals ---

// Approval is a persisted approval request for a risky tool call.
type Approval struct {
	ID           int64          `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	DecidedAt    *time.Time     `json:"decided_at"`
	RunID        *int64         `json:"run_id"`
	Status       string         `json:"status"`
	RiskLevel    string         `json:"risk_level"`
	ToolName     string         `json:"tool_name"`
	ToolArgs     map[string]any `json:"tool_args"`
	DecisionNote string         `json:"decision_note"`
}

// Approval status values.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// CreateApproval inserts a pending approval row.
func (s *Store) CreateApproval(ctx context.Context, a Approval) (*Approval, error) {
	raw, err := marshalJSON(a.ToolArgs)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if a.RiskLevel == "" {
		a.RiskLevel = "high"
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO approvals (created_at, run_id, status, risk_level, tool_name, tool_args, decision_note)
		 VALUES (?, ?, ?, ?, ?, ?, '')`,
		now, a.RunID, ApprovalPending, a.RiskLevel, a.ToolName, raw,
	)
	if err != nil {
		return nil, fmt.Errorf("create approval: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create approval id: %w", err)
	}
	a.ID = id
	a.CreatedAt = now
	a.Status = ApprovalPending
	return &a, nil
}

// GetApproval fetches one approval by id.
func (s *Store) GetApproval(ctx context.Context, id int64) (*Approval, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, decided_at, run_id, status, risk_level, tool_name, tool_args, decision_note
		 FROM approvals WHERE id = ?`, id)
	return scanApproval(row)
}

// DecideApproval transitions a pending approval to approved/rejected.
func (s *Store) DecideApproval(ctx context.Context, id int64, status, note string) (*Approval, error) {
	existing, err := s.GetApproval(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.Status != ApprovalPending {
		return nil, fmt.Errorf("approval %d is not pending", id)
	}

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`UPDATE approvals SET status = ?, decision_note = ?, decided_at = ? WHERE id = ?`,
		status, note, now, id,
	)
	if err != nil {
		return nil, fmt.Errorf("decide approval %d: %w", id, err)
	}
	existing.Status = status
	existing.DecisionNote = note
	existing.DecidedAt = &now
	return existing, nil
}

// ListApprovals returns approvals, newest first.
func (s *Store) ListApprovals(ctx context.Context, limit int) ([]*Approval, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, decided_at, run_id, status, risk_level, tool_name, tool_args, decision_note
		 FROM approvals ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	defer rows.Close()

	var out []*Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountPendingApprovals counts rows still awaiting a decision.
func (s *Store) CountPendingApprovals(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM approvals WHERE status = ?`, ApprovalPending).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending approvals: %w", err)
	}
	return n, nil
}

func scanApproval(row rowScanner) (*Approval, error) {
	var a Approval
	var raw string
	if err := row.Scan(&a.ID, &a.CreatedAt, &a.DecidedAt, &a.RunID, &a.Status, &a.RiskLevel, &a.ToolName, &raw, &a.DecisionNote); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("approval not found")
		}
		return nil, fmt.Errorf("scan approval: %w", err)
	}
	a.ToolArgs = unmarshalJSON(raw)
	return &a, nil
}

// --- product drafts ---

// ProductDraft is a product candidate staged for (simulated) publishing.
type ProductDraft struct {
	ID          int64          `json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Price       float64        `json:"price"`
	Currency    string         `json:"currency"`
	Status      string         `json:"status"`
	ExternalID  string         `json:"external_id"`
	Meta        map[string]any `json:"meta"`
}

// Draft status values.
const (
	DraftStatusDraft              = "draft"
	DraftStatusPublished          = "published"
	DraftStatusSimulatedPublished = "simulated_published"
)

// CreateDraft inserts a product draft and fills its id.
func (s *Store) CreateDraft(ctx context.Context, d *ProductDraft) error {
	raw, err := marshalJSON(d.Meta)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	if d.Currency == "" {
		d.Currency = "USD"
	}
	if d.Status == "" {
		d.Status = DraftStatusDraft
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO product_drafts (created_at, title, description, price, currency, status, external_id, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		now, d.Title, d.Description, d.Price, d.Currency, d.Status, d.ExternalID, raw,
	)
	if err != nil {
		return fmt.Errorf("create draft: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create draft id: %w", err)
	}
	d.ID = id
	d.CreatedAt = now
	return nil
}

// GetDraft fetches one draft by id; returns nil when absent.
func (s *Store) GetDraft(ctx context.Context, id int64) (*ProductDraft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, title, description, price, currency, status, external_id, meta
		 FROM product_drafts WHERE id = ?`, id)
	d, err := scanDraft(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// LatestDraft fetches the most recently created draft; nil when none exist.
func (s *Store) LatestDraft(ctx context.Context) (*ProductDraft, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, title, description, price, currency, status, external_id, meta
		 FROM product_drafts ORDER BY id DESC LIMIT 1`)
	d, err := scanDraft(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

// UpdateDraftStatus updates the status (and optional external id) of a draft.
func (s *Store) UpdateDraftStatus(ctx context.Context, id int64, status, externalID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE product_drafts SET status = ?, external_id = CASE WHEN ? != '' THEN ? ELSE external_id END WHERE id = ?`,
		status, externalID, externalID, id,
	)
	if err != nil {
		return fmt.Errorf("update draft %d: %w", id, err)
	}
	return nil
}

func scanDraft(row rowScanner) (*ProductDraft, error) {
	var d ProductDraft
	var raw string
	if err := row.Scan(&d.ID, &d.CreatedAt, &d.Title, &d.Description, &d.Price, &d.Currency, &d.Status, &d.ExternalID, &raw); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan draft: %w", err)
	}
	d.Meta = unmarshalJSON(raw)
	return &d, nil
}

// --- message events ---

// MessageEvent is one inbound customer message or comment captured from
// a channel webhook.
type MessageEvent struct {
	ID         int64          `json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	Channel    string         `json:"channel"`
	ExternalID string         `json:"external_id"`
	FromUser   string         `json:"from_user"`
	Text       string         `json:"text"`
	Processed  bool           `json:"processed"`
	Meta       map[string]any `json:"meta"`
}

// AddMessageEvent inserts an inbound message event.
func (s *Store) AddMessageEvent(ctx context.Context, m *MessageEvent) error {
	raw, err := marshalJSON(m.Meta)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO message_events (created_at, channel, external_id, from_user, text, processed, meta)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		now, m.Channel, m.ExternalID, m.FromUser, m.Text, m.Processed, raw,
	)
	if err != nil {
		return fmt.Errorf("add message event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("add message event id: %w", err)
	}
	m.ID = id
	m.CreatedAt = now
	return nil
}

// ListMessageEvents returns recent message events, newest first.
func (s *Store) ListMessageEvents(ctx context.Context, limit int) ([]*MessageEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, channel, external_id, from_user, text, processed, meta
		 FROM message_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list message events: %w", err)
	}
	defer rows.Close()

	var out []*MessageEvent
	for rows.Next() {
		var m MessageEvent
		var raw string
		if err := rows.Scan(&m.ID, &m.CreatedAt, &m.Channel, &m.ExternalID, &m.FromUser, &m.Text, &m.Processed, &raw); err != nil {
			return nil, fmt.Errorf("scan message event: %w", err)
		}
		m.Meta = unmarshalJSON(raw)
		out = append(out, &m)
	}
	return out, rows.Err()
}

// MarkMessageProcessed flags a message event as handled.
func (s *Store) MarkMessageProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE message_events SET processed = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("mark message %d processed: %w", id, err)
	}
	return nil
}
