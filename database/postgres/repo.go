// Package postgres implements the metadata store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sagarc03/dams"
)

// foreignKeyViolation is the SQLSTATE raised when a grant references a
// missing asset.
const foreignKeyViolation = "23503"

const assetColumns = `id, owner_id, filename, storage_key, location, mime_type, size_bytes, version, created_at, updated_at`

type repo struct {
	pool   *pgxpool.Pool
	tables dams.Tables
}

func NewRepo(pool *pgxpool.Pool, tables dams.Tables) (dams.MetadataStore, error) {
	if err := tables.Validate(); err != nil {
		return nil, fmt.Errorf("new repo: %w", err)
	}

	return &repo{pool: pool, tables: tables}, nil
}

func scanAsset(row pgx.Row) (dams.Asset, error) {
	var a dams.Asset
	err := row.Scan(
		&a.ID, &a.OwnerID, &a.Filename, &a.StorageKey, &a.Location,
		&a.MimeType, &a.SizeBytes, &a.Version, &a.CreatedAt, &a.UpdatedAt,
	)
	return a, err
}

func (r *repo) CreateAsset(ctx context.Context, entry dams.NewAsset) (dams.Asset, error) {
	query := fmt.Sprintf(`
		INSERT INTO %s (owner_id, filename, storage_key, location, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING %s
	`, r.tables.Assets, assetColumns)

	a, err := scanAsset(r.pool.QueryRow(ctx, query,
		entry.OwnerID, entry.Filename, entry.StorageKey, entry.Location, entry.MimeType, entry.SizeBytes,
	))
	if err != nil {
		return dams.Asset{}, fmt.Errorf("create asset: %w", err)
	}

	return a, nil
}

func (r *repo) GetAsset(ctx context.Context, id uuid.UUID) (dams.Asset, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = $1`, assetColumns, r.tables.Assets)

	a, err := scanAsset(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dams.Asset{}, dams.ErrNotFound
		}
		return dams.Asset{}, fmt.Errorf("get asset: %w", err)
	}

	return a, nil
}

func (r *repo) ListAssets(ctx context.Context, ownerID string) ([]dams.Asset, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM %s
		WHERE ($1 = '' OR owner_id = $1)
		ORDER BY created_at DESC, id
	`, assetColumns, r.tables.Assets)

	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	assets := []dams.Asset{}
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("list assets: scan: %w", err)
		}
		assets = append(assets, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list assets: rows: %w", err)
	}

	return assets, nil
}

func (r *repo) UpdateAssetContent(ctx context.Context, id uuid.UUID, version int64, content dams.AssetContent) (dams.Asset, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET filename = $3,
			storage_key = $4,
			location = $5,
			mime_type = $6,
			size_bytes = $7,
			version = version + 1,
			updated_at = NOW()
		WHERE id = $1 AND version = $2
		RETURNING %s
	`, r.tables.Assets, assetColumns)

	a, err := scanAsset(r.pool.QueryRow(ctx, query,
		id, version, content.Filename, content.StorageKey, content.Location, content.MimeType, content.SizeBytes,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dams.Asset{}, fmt.Errorf("update asset: %w", r.missOrConflict(ctx, id))
		}
		return dams.Asset{}, fmt.Errorf("update asset: %w", err)
	}

	return a, nil
}

func (r *repo) DeleteAsset(ctx context.Context, id uuid.UUID, version int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1 AND version = $2`, r.tables.Assets)

	result, err := r.pool.Exec(ctx, query, id, version)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("delete asset: %w", r.missOrConflict(ctx, id))
	}

	return nil
}

// missOrConflict explains why a version-guarded write touched no rows.
func (r *repo) missOrConflict(ctx context.Context, id uuid.UUID) error {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)`, r.tables.Assets)

	var exists bool
	if err := r.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return fmt.Errorf("check asset exists: %w", err)
	}

	if exists {
		return dams.ErrConflict
	}
	return dams.ErrNotFound
}

func (r *repo) CreateShare(ctx context.Context, assetID uuid.UUID, granteeID string) (dams.ShareGrant, bool, error) {
	insert := fmt.Sprintf(`
		INSERT INTO %s (asset_id, grantee_id)
		VALUES ($1, $2)
		ON CONFLICT (asset_id, grantee_id) DO NOTHING
		RETURNING asset_id, grantee_id, created_at
	`, r.tables.Shares)

	var g dams.ShareGrant
	err := r.pool.QueryRow(ctx, insert, assetID, granteeID).Scan(&g.AssetID, &g.GranteeID, &g.CreatedAt)
	if err == nil {
		return g, true, nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: %w", dams.ErrNotFound)
	}

	if !errors.Is(err, pgx.ErrNoRows) {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: %w", err)
	}

	existing := fmt.Sprintf(`
		SELECT asset_id, grantee_id, created_at
		FROM %s
		WHERE asset_id = $1 AND grantee_id = $2
	`, r.tables.Shares)

	err = r.pool.QueryRow(ctx, existing, assetID, granteeID).Scan(&g.AssetID, &g.GranteeID, &g.CreatedAt)
	if err != nil {
		return dams.ShareGrant{}, false, fmt.Errorf("create share: load existing: %w", err)
	}

	return g, false, nil
}

func (r *repo) HasShare(ctx context.Context, assetID uuid.UUID, granteeID string) (bool, error) {
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE asset_id = $1 AND grantee_id = $2)`, r.tables.Shares)

	var exists bool
	if err := r.pool.QueryRow(ctx, query, assetID, granteeID).Scan(&exists); err != nil {
		return false, fmt.Errorf("has share: %w", err)
	}

	return exists, nil
}

func (r *repo) ListSharedWith(ctx context.Context, granteeID string) ([]dams.SharedAsset, error) {
	query := fmt.Sprintf(`
		SELECT a.id, a.owner_id, a.filename, a.storage_key, a.location, a.mime_type,
			a.size_bytes, a.version, a.created_at, a.updated_at,
			COALESCE(u.name, ''), COALESCE(u.email, ''), s.created_at
		FROM %s s
		JOIN %s a ON a.id = s.asset_id
		LEFT JOIN %s u ON u.id = a.owner_id
		WHERE s.grantee_id = $1
		ORDER BY s.created_at DESC, a.id
	`, r.tables.Shares, r.tables.Assets, r.tables.Users)

	rows, err := r.pool.Query(ctx, query, granteeID)
	if err != nil {
		return nil, fmt.Errorf("list shared: %w", err)
	}
	defer rows.Close()

	shared := []dams.SharedAsset{}
	for rows.Next() {
		var s dams.SharedAsset
		if err := rows.Scan(
			&s.ID, &s.OwnerID, &s.Filename, &s.StorageKey, &s.Location, &s.MimeType,
			&s.SizeBytes, &s.Version, &s.CreatedAt, &s.UpdatedAt,
			&s.OwnerName, &s.OwnerEmail, &s.SharedAt,
		); err != nil {
			return nil, fmt.Errorf("list shared: scan: %w", err)
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

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET name = EXCLUDED.name,
			email = EXCLUDED.email,
			role = EXCLUDED.role
	`, r.tables.Users)

	if _, err := r.pool.Exec(ctx, query, user.ID, user.Name, user.Email, string(user.Role)); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}

	return nil
}

func (r *repo) GetUser(ctx context.Context, id string) (dams.User, error) {
	query := fmt.Sprintf(`SELECT id, name, email, role, created_at FROM %s WHERE id = $1`, r.tables.Users)

	var u dams.User
	var role string
	err := r.pool.QueryRow(ctx, query, id).Scan(&u.ID, &u.Name, &u.Email, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dams.User{}, dams.ErrNotFound
		}
		return dams.User{}, fmt.Errorf("get user: %w", err)
	}
	u.Role = dams.Role(role)

	return u, nil
}

func (r *repo) Record(ctx context.Context, event dams.ActivityEvent) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (user_id, action, asset_id, status, message)
		VALUES ($1, $2, $3, $4, $5)
	`, r.tables.Activity)

	var assetID any
	if event.AssetID != uuid.Nil {
		assetID = event.AssetID
	}

	if _, err := r.pool.Exec(ctx, query, event.ActorID, event.Action, assetID, event.Status, event.Message); err != nil {
		return fmt.Errorf("record activity: %w", err)
	}

	return nil
}
