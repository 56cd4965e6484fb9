// Package sqlite implements the metadata store using SQLite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sagarc03/dams"
)

// timeFormat is fixed width so that text ordering matches time ordering.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

const assetColumns = `id, owner_id, filename, storage_key, location, mime_type, size_bytes, version, created_at, updated_at`

type repo struct {
	db     *sql.DB
	tables dams.Tables
}

func now() string {
	return time.Now().UTC().Format(timeFormat)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner, extra ...any) (dams.Asset, error) {
	var a dams.Asset
	var idStr, createdAt, updatedAt string

	dest := append([]any{
		&idStr, &a.OwnerID, &a.Filename, &a.StorageKey, &a.Location,
		&a.MimeType, &a.SizeBytes, &a.Version, &createdAt, &updatedAt,
	}, extra...)

	if err := row.Scan(dest...); err != nil {
		return dams.Asset{}, err
	}

	var err error
	if a.ID, err = uuid.Parse(idStr); err != nil {
		return dams.Asset{}, fmt.Errorf("parse uuid: %w", err)
	}
	if a.CreatedAt, err = parseTime(createdAt); err != nil {
		return dams.Asset{}, fmt.Errorf("parse created_at: %w", err)
	}
	if a.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return dams.Asset{}, fmt.Errorf("parse updated_at: %w", err)
	}

	return a, nil
}

func (r *repo) CreateAsset(ctx context.Context, entry dams.NewAsset) (dams.Asset, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, owner_id, filename, storage_key, location, mime_type, size_bytes, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`, r.tables.Assets)

	id := uuid.New()
	ts := now()

	_, err := r.db.ExecContext(ctx, query,
		id.String(), entry.OwnerID, entry.Filename, entry.StorageKey, entry.Location,
		entry.MimeType, entry.SizeBytes, ts, ts,
	)
	if err != nil {
		return dams.Asset{}, fmt.Errorf("create asset: %w", err)
	}

	created, _ := parseTime(ts)

	return dams.Asset{
		ID:         id,
		OwnerID:    entry.OwnerID,
		Filename:   entry.Filename,
		StorageKey: entry.StorageKey,
		Location:   entry.Location,
		MimeType:   entry.MimeType,
		SizeBytes:  entry.SizeBytes,
		Version:    1,
		CreatedAt:  created,
		UpdatedAt:  created,
	}, nil
}

func (r *repo) GetAsset(ctx context.Context, id uuid.UUID) (dams.Asset, error) {
	return r.getAsset(ctx, r.db, id)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (r *repo) getAsset(ctx context.Context, q querier, id uuid.UUID) (dams.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, assetColumns, r.tables.Assets) //nolint:gosec // G201: table name is validated

	a, err := scanAsset(q.QueryRowContext(ctx, query, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dams.Asset{}, dams.ErrNotFound
		}
		return dams.Asset{}, fmt.Errorf("get asset: %w", err)
	}

	return a, nil
}

func (r *repo) ListAssets(ctx context.Context, ownerID string) ([]dams.Asset, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT %s FROM %s
		WHERE (? = '' OR owner_id = ?)
		ORDER BY created_at DESC, id`, assetColumns, r.tables.Assets)

	rows, err := r.db.QueryContext(ctx, query, ownerID, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	assets := []dams.Asset{}
	for rows.Next() {
		a, scanErr := scanAsset(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("list assets: scan: %w", scanErr)
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: rows: %w", err)
	}

	return assets, nil
}

func (r *repo) UpdateAssetContent(ctx context.Context, id uuid.UUID, version int64, content dams.AssetContent) (dams.Asset, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dams.Asset{}, fmt.Errorf("update asset: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`UPDATE %s
		SET filename = ?, storage_key = ?, location = ?, mime_type = ?, size_bytes = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`, r.tables.Assets)

	result, err := tx.ExecContext(ctx, query,
		content.Filename, content.StorageKey, content.Location, content.MimeType, content.SizeBytes,
		now(), id.String(), version,
	)
	if err != nil {
		return dams.Asset{}, fmt.Errorf("update asset: %w", err)
	}

	if err := r.expectOneRow(ctx, tx, result, id); err != nil {
		return dams.Asset{}, fmt.Errorf("update asset: %w", err)
	}

	a, err := r.getAsset(ctx, tx, id)
	if err != nil {
		return dams.Asset{}, fmt.Errorf("update asset: reload: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return dams.Asset{}, fmt.Errorf("update asset: commit: %w", err)
	}

	return a, nil
}

func (r *repo) DeleteAsset(ctx context.Context, id uuid.UUID, version int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete asset: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ? AND version = ?`, r.tables.Assets) //nolint:gosec // G201: table name is validated

	result, err := tx.ExecContext(ctx, query, id.String(), version)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}

	if err := r.expectOneRow(ctx, tx, result, id); err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}

	sharesQuery := fmt.Sprintf(`DELETE FROM %s WHERE asset_id = ?`, r.tables.Shares) //nolint:gosec // G201: table name is validated
	if _, err := tx.ExecContext(ctx, sharesQuery, id.String()); err != nil {
		return fmt.Errorf("delete asset: delete shares: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete asset: commit: %w", err)
	}

	return nil
}

// expectOneRow turns a version-guarded write that touched no rows into
// ErrConflict or ErrNotFound.
func (r *repo) expectOneRow(ctx context.Context, tx *sql.Tx, result sql.Result, id uuid.UUID) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rowsAffected > 0 {
		return nil
	}

	exists, err := r.assetExists(ctx, tx, id)
	if err != nil {
		return err
	}
	if exists {
		return dams.ErrConflict
	}
	return dams.ErrNotFound
}

func (r *repo) assetExists(ctx context.Context, q querier, id uuid.UUID) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = ?)`, r.tables.Assets) //nolint:gosec // G201: table name is validated

	var exists bool
	if err := q.QueryRowContext(ctx, query, id.String()).Scan(&exists); err != nil {
		return false, fmt.Errorf("check asset exists: %w", err)
	}
	return exists, nil
}

func (r *repo) CreateShare(ctx context.Context, assetID uuid.UUID, granteeID string) (dams.ShareGrant, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	exists, err := r.assetExists(ctx, tx, assetID)
	if err != nil {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: %w", err)
	}
	if !exists {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: %w", dams.ErrNotFound)
	}

	insert := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (asset_id, grantee_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (asset_id, grantee_id) DO NOTHING`, r.tables.Shares)

	result, err := tx.ExecContext(ctx, insert, assetID.String(), granteeID, now())
	if err != nil {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: rows affected: %w", err)
	}

	existing := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT created_at FROM %s WHERE asset_id = ? AND grantee_id = ?`, r.tables.Shares)

	var createdAt string
	if err := tx.QueryRowContext(ctx, existing, assetID.String(), granteeID).Scan(&createdAt); err != nil {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: load: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: commit: %w", err)
	}

	g := dams.ShareGrant{AssetID: assetID, GranteeID: granteeID}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: parse created_at: %w", err)
	}

	return g, rowsAffected > 0, nil
}

func (r *repo) HasShare(ctx context.Context, assetID uuid.UUID, granteeID string) (bool, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT EXISTS (SELECT 1 FROM %s WHERE asset_id = ? AND grantee_id = ?)`, r.tables.Shares)

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, assetID.String(), granteeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("has share: %w", err)
	}

	return exists, nil
}

func (r *repo) ListSharedWith(ctx context.Context, granteeID string) ([]dams.SharedAsset, error) {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`SELECT a.id, a.owner_id, a.filename, a.storage_key, a.location, a.mime_type,
			a.size_bytes, a.version, a.created_at, a.updated_at,
			COALESCE(u.name, ''), COALESCE(u.email, ''), s.created_at
		FROM %s s
		JOIN %s a ON a.id = s.asset_id
		LEFT JOIN %s u ON u.id = a.owner_id
		WHERE s.grantee_id = ?
		ORDER BY s.created_at DESC, a.id`,
		quoteIdentifier(r.tables.Shares), quoteIdentifier(r.tables.Assets), quoteIdentifier(r.tables.Users))

	rows, err := r.db.QueryContext(ctx, query, granteeID)
	if err != nil {
		return nil, fmt.Errorf("list shared: %w", err)
	}
	defer func() { _ = rows.Close() }()

	shared := []dams.SharedAsset{}
	for rows.Next() {
		var s dams.SharedAsset
		var sharedAt string

		a, scanErr := scanAsset(rows, &s.OwnerName, &s.OwnerEmail, &sharedAt)
		if scanErr != nil {
			return nil, fmt.Errorf("list shared: scan: %w", scanErr)
		}
		s.Asset = a

		if s.SharedAt, err = parseTime(sharedAt); err != nil {
			return nil, fmt.Errorf("list shared: parse shared_at: %w", err)
		}
		shared = append(shared, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shared: rows: %w", err)
	}

	return shared, nil
}

func (r *repo) UpsertUser(ctx context.Context, user dams.User) error {
	if user.ID == "" || !user.Role.IsValid() {
		return fmt.Errorf("upsert user: %w: id and valid role required", dams.ErrInvalidInput)
	}

	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET name = excluded.name, email = excluded.email, role = excluded.role`, r.tables.Users)

	if _, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, string(user.Role), now()); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (r *repo) GetUser(ctx context.Context, id string) (dams.User, error) {
	query := fmt.Sprintf(`SELECT id, name, email, role, created_at FROM %s WHERE id = ?`, r.tables.Users) //nolint:gosec // G201: table name is validated

	var u dams.User
	var role, createdAt string
	err := r.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return dams.User{}, dams.ErrNotFound
		}
		return dams.User{}, fmt.Errorf("get user: %w", err)
	}

	u.Role = dams.Role(role)
	if u.CreatedAt, err = parseTime(createdAt); err != nil {
		return dams.User{}, fmt.Errorf("get user: parse created_at: %w", err)
	}

	return u, nil
}

func (r *repo) Record(ctx context.Context, event dams.ActivityEvent) error {
	query := fmt.Sprintf( //nolint:gosec // G201: table name is validated
		`INSERT INTO %s (id, user_id, action, asset_id, status, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, r.tables.Activity)

	var assetID sql.NullString
	if event.AssetID != uuid.Nil {
		assetID = sql.NullString{String: event.AssetID.String(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		uuid.NewString(), event.ActorID, event.Action, assetID, event.Status, event.Message, now(),
	)
	if err != nil {
		return fmt.Errorf("record activity: %w", err)
	}

	return nil
}
