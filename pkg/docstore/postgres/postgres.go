package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/enaema/budget-ledger/pkg/docstore"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Store persists documents as JSONB rows in the ledger_document table.
// Top-level field filters use JSONB containment, so they can use the GIN index.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) FindOne(ctx context.Context, filter docstore.Filter) (docstore.Document, error) {
	docs, err := s.Find(ctx, filter, docstore.FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, docstore.ErrNotFound
	}
	return docs[0], nil
}

func (s *Store) Find(ctx context.Context, filter docstore.Filter, opts docstore.FindOptions) ([]docstore.Document, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return nil, err
	}

	query := "SELECT id::text, body FROM ledger_document WHERE " + where
	orderBy := make([]string, 0, len(opts.Sort)+1)
	for _, f := range opts.Sort {
		args = append(args, f.Field)
		direction := "ASC"
		if f.Desc {
			direction = "DESC"
		}
		orderBy = append(orderBy, fmt.Sprintf("body->>($%d::text) %s", len(args), direction))
	}
	orderBy = append(orderBy, "seq ASC")
	query += " ORDER BY " + strings.Join(orderBy, ", ")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not query documents: %w", classify(err))
		log.Error(err)
		return nil, err
	}
	defer rows.Close()

	docs := make([]docstore.Document, 0, 16)
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			err := fmt.Errorf("could not scan document: %w", err)
			log.Error(err)
			return nil, err
		}
		doc := docstore.Document{}
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("could not decode document %s: %w", id, err)
		}
		doc[docstore.IDField] = id
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		err := fmt.Errorf("error iterating over rows: %w", classify(err))
		log.Error(err)
		return nil, err
	}
	return docs, nil
}

func (s *Store) InsertOne(ctx context.Context, doc docstore.Document) (string, error) {
	body, err := encodeBody(doc)
	if err != nil {
		return "", err
	}
	var id string
	err = s.db.QueryRow(ctx, "INSERT INTO ledger_document (body) VALUES ($1::jsonb) RETURNING id::text", body).Scan(&id)
	if err != nil {
		err := fmt.Errorf("could not insert document: %w", classify(err))
		log.Error(err)
		return "", err
	}
	return id, nil
}

func (s *Store) UpdateOne(ctx context.Context, filter docstore.Filter, set docstore.Document) (bool, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return false, err
	}
	body, err := encodeBody(set)
	if err != nil {
		return false, err
	}
	args = append(args, body)
	query := fmt.Sprintf(
		`UPDATE ledger_document SET body = body || $%d::jsonb
		 WHERE id = (SELECT id FROM ledger_document WHERE %s ORDER BY seq LIMIT 1)`,
		len(args), where,
	)
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not update document: %w", classify(err))
		log.Error(err)
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) DeleteOne(ctx context.Context, filter docstore.Filter) (bool, error) {
	where, args, err := whereClause(filter)
	if err != nil {
		return false, err
	}
	query := fmt.Sprintf(
		"DELETE FROM ledger_document WHERE id = (SELECT id FROM ledger_document WHERE %s ORDER BY seq LIMIT 1)",
		where,
	)
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		err := fmt.Errorf("could not delete document: %w", classify(err))
		log.Error(err)
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return classify(err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	s.db.Close()
	return nil
}

func whereClause(filter docstore.Filter) (string, []any, error) {
	conditions := []string{"TRUE"}
	args := make([]any, 0, 2)
	fields := docstore.Document{}
	for k, v := range filter {
		if k != docstore.IDField {
			fields[k] = v
			continue
		}
		idString, ok := v.(string)
		if !ok {
			return "", nil, fmt.Errorf("%w: %v", docstore.ErrInvalidID, v)
		}
		id, err := uuid.Parse(idString)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %s", docstore.ErrInvalidID, idString)
		}
		args = append(args, id.String())
		conditions = append(conditions, fmt.Sprintf("id = $%d::uuid", len(args)))
	}
	if len(fields) > 0 {
		body, err := json.Marshal(fields)
		if err != nil {
			return "", nil, fmt.Errorf("could not encode filter: %w", err)
		}
		args = append(args, string(body))
		conditions = append(conditions, fmt.Sprintf("body @> $%d::jsonb", len(args)))
	}
	return strings.Join(conditions, " AND "), args, nil
}

func encodeBody(doc docstore.Document) (string, error) {
	body := doc.Clone()
	delete(body, docstore.IDField)
	if body == nil {
		body = docstore.Document{}
	}
	encoded, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("could not encode document: %w", err)
	}
	return string(encoded), nil
}

// classify marks connection-level failures as docstore.ErrUnavailable so callers can retry them.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "23505":
			return fmt.Errorf("%w: %v", docstore.ErrDuplicate, err)
		case strings.HasPrefix(pgErr.Code, "08"):
			return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
		}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return fmt.Errorf("%w: %v", docstore.ErrUnavailable, err)
	}
	return err
}
