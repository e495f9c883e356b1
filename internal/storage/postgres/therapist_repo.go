// Package postgres stores therapist profiles in PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/zhouzirui/z-companion/backend/internal/failure"
	"github.com/zhouzirui/z-companion/backend/internal/model/therapist"
)

//go:embed schema.sql
var schema string

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping failed: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the therapists table when it does not exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// TherapistRepo implements therapist.Store over a *sql.DB.
type TherapistRepo struct {
	db *sql.DB
}

// NewTherapistRepo returns a repository bound to db.
func NewTherapistRepo(db *sql.DB) *TherapistRepo {
	return &TherapistRepo{db: db}
}

var selectColumns = func() string {
	cols := []string{"id", "display_name", "role", "credentials", "advice_handling", "approaches"}
	cols = append(cols, scenarioColumns("transcript_")...)
	cols = append(cols, scenarioColumns("voice_")...)
	cols = append(cols, "words_often_used", "words_to_avoid", "created_at")
	return strings.Join(cols, ", ")
}()

// FindByID implements therapist.Store.
func (r *TherapistRepo) FindByID(ctx context.Context, id string) (therapist.Profile, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM therapists WHERE id = $1`, id)

	var (
		p           therapist.Profile
		role        string
		advice      string
		credentials sql.NullString
		often       sql.NullString
		avoid       sql.NullString
		transcripts = make([]sql.NullString, len(therapist.Scenarios))
		voices      = make([]sql.NullString, len(therapist.Scenarios))
	)

	dest := []any{&p.ID, &p.DisplayName, &role, &credentials, &advice, pq.Array(&p.Approaches)}
	for i := range transcripts {
		dest = append(dest, &transcripts[i])
	}
	for i := range voices {
		dest = append(dest, &voices[i])
	}
	dest = append(dest, &often, &avoid, &p.CreatedAt)

	if err := row.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return therapist.Profile{}, failure.NotFound("therapist %q", id)
		}
		return therapist.Profile{}, failure.Upstream(err, "load therapist")
	}

	p.Role = therapist.Role(role)
	p.AdviceHandling = therapist.AdviceHandling(advice)
	p.Credentials = credentials.String
	p.WordsOftenUsed = often.String
	p.WordsToAvoid = avoid.String
	p.Transcripts = make(map[therapist.Scenario]string, len(therapist.Scenarios))
	p.AudioURLs = make(map[therapist.Scenario]string, len(therapist.Scenarios))
	for i, s := range therapist.Scenarios {
		if transcripts[i].Valid {
			p.Transcripts[s] = transcripts[i].String
		}
		if voices[i].Valid {
			p.AudioURLs[s] = voices[i].String
		}
	}
	return p, nil
}

// Create implements therapist.Store.
func (r *TherapistRepo) Create(ctx context.Context, p therapist.Profile) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO therapists (id, display_name, role, credentials, advice_handling, approaches,
			words_often_used, words_to_avoid, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.DisplayName, string(p.Role), nullable(p.Credentials), string(p.AdviceHandling),
		pq.Array(nonNil(p.Approaches)), nullable(p.WordsOftenUsed), nullable(p.WordsToAvoid), p.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return failure.Validation("therapist %q already exists", p.ID)
		}
		return failure.Upstream(err, "create therapist")
	}
	return nil
}

// SetRecording implements therapist.Store. An empty audioURL keeps the
// stored one.
func (r *TherapistRepo) SetRecording(ctx context.Context, id string, scenario therapist.Scenario, audioURL, transcript string) error {
	query, err := setRecordingQuery(scenario)
	if err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx, query, id, transcript, audioURL)
	if err != nil {
		return failure.Upstream(err, "store recording")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return failure.Upstream(err, "store recording")
	}
	if n == 0 {
		return failure.NotFound("therapist %q", id)
	}
	return nil
}

// setRecordingQuery builds the update for one scenario. Column names come
// from the closed scenario set only.
func setRecordingQuery(scenario therapist.Scenario) (string, error) {
	if !scenario.Valid() {
		return "", failure.Validation("unknown scenario %q", scenario)
	}
	transcriptCol := "transcript_" + string(scenario)
	voiceCol := "voice_" + string(scenario)
	return fmt.Sprintf(
		`UPDATE therapists SET %s = $2, %s = COALESCE(NULLIF($3, ''), %s) WHERE id = $1`,
		transcriptCol, voiceCol, voiceCol,
	), nil
}

func scenarioColumns(prefix string) []string {
	cols := make([]string, 0, len(therapist.Scenarios))
	for _, s := range therapist.Scenarios {
		cols = append(cols, prefix+string(s))
	}
	return cols
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
