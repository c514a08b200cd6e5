package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"github.com/kildespor/kildespor/models"
)

// Store wraps the Postgres connection. All queries are organization-scoped
// where tenant isolation matters; callers pass the scope explicitly.
type Store struct {
	DB *sql.DB
}

func New(ctx context.Context) (*Store, error) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		host := getenvDefault("POSTGRES_HOST", "localhost")
		port := getenvDefault("POSTGRES_PORT", "5432")
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		db := os.Getenv("POSTGRES_DB")
		ssl := getenvDefault("POSTGRES_SSLMODE", "disable")
		dsn = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", user, pass, host, port, db, ssl)
	}
	return NewWithDSN(ctx, dsn)
}

// NewWithDSN constructs the Store using an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}

// User operations

func (s *Store) CreateUser(ctx context.Context, email, hash, orgID string, role models.Role) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, organization_id, role) VALUES ($1,$2,$3,$4)`,
		email, hash, orgID, string(role))
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

func (s *Store) GetUser(ctx context.Context, id string) (models.User, bool, error) {
	var u models.User
	var role string
	err := s.DB.QueryRowContext(ctx,
		`SELECT id, email, organization_id, role, created_at FROM users WHERE id=$1`, id).
		Scan(&u.ID, &u.Email, &u.OrganizationID, &role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, false, nil
	}
	if err != nil {
		return models.User{}, false, err
	}
	u.Role = models.Role(role)
	return u, true, nil
}

func (s *Store) CreateOrganization(ctx context.Context, name string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO organizations (name) VALUES ($1) RETURNING id`, name).Scan(&id)
	return id, err
}

// ListOrganizationIDs returns every organization id, used by the index
// rebuild scheduler.
func (s *Store) ListOrganizationIDs(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id FROM organizations ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// Video operations

const videoColumns = `id, title, COALESCE(description,''), organization_id, uploaded_by, security_level, status, COALESCE(duration,0), created_at`

func scanVideo(row interface{ Scan(...interface{}) error }) (models.Video, error) {
	var v models.Video
	var level, status string
	err := row.Scan(&v.ID, &v.Title, &v.Description, &v.OrganizationID, &v.UploadedBy, &level, &status, &v.Duration, &v.CreatedAt)
	if err != nil {
		return models.Video{}, err
	}
	v.SecurityLevel = models.SecurityLevel(level)
	v.Status = models.VideoStatus(status)
	return v, nil
}

func (s *Store) CreateVideo(ctx context.Context, v models.Video) (models.Video, error) {
	if strings.TrimSpace(v.Title) == "" {
		return models.Video{}, fmt.Errorf("video title required")
	}
	if v.SecurityLevel == "" {
		v.SecurityLevel = models.SecurityInternal
	}
	if v.Status == "" {
		v.Status = models.VideoProcessing
	}
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO videos (title, description, organization_id, uploaded_by, security_level, status, duration)
VALUES ($1,$2,$3,$4,$5,$6,$7)
RETURNING `+videoColumns, v.Title, v.Description, v.OrganizationID, v.UploadedBy, string(v.SecurityLevel), string(v.Status), v.Duration)
	return scanVideo(row)
}

// GetVideo fetches a video regardless of organization. Callers that serve
// user requests must run the result through the access filter.
func (s *Store) GetVideo(ctx context.Context, id string) (models.Video, bool, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+videoColumns+` FROM videos WHERE id=$1`, id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Video{}, false, nil
	}
	if err != nil {
		return models.Video{}, false, err
	}
	return v, true, nil
}

// GetVideoInOrg fetches a video only if it belongs to the given organization.
func (s *Store) GetVideoInOrg(ctx context.Context, id, orgID string) (models.Video, bool, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE id=$1 AND organization_id=$2`, id, orgID)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Video{}, false, nil
	}
	if err != nil {
		return models.Video{}, false, err
	}
	return v, true, nil
}

func (s *Store) ListVideos(ctx context.Context, orgID string) ([]models.Video, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+videoColumns+` FROM videos WHERE organization_id=$1 ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (s *Store) SetVideoStatus(ctx context.Context, id string, status models.VideoStatus) error {
	_, err := s.DB.ExecContext(ctx, `UPDATE videos SET status=$2, updated_at=now() WHERE id=$1`, id, string(status))
	return err
}

// DeleteVideo removes a video; segments and permissions go with it via
// ON DELETE CASCADE.
func (s *Store) DeleteVideo(ctx context.Context, id, orgID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM videos WHERE id=$1 AND organization_id=$2`, id, orgID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// HasGrant reports whether the user holds an explicit permission of one of
// the given types on the video.
func (s *Store) HasGrant(ctx context.Context, videoID, userID string, types ...models.PermissionType) (bool, error) {
	query := `SELECT 1 FROM video_access_permissions WHERE video_id=$1 AND user_id=$2`
	args := []interface{}{videoID, userID}
	if len(types) > 0 {
		placeholders := make([]string, len(types))
		for i, t := range types {
			args = append(args, string(t))
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		query += ` AND permission_type IN (` + strings.Join(placeholders, ",") + `)`
	}
	var one int
	err := s.DB.QueryRowContext(ctx, query+` LIMIT 1`, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) GrantPermission(ctx context.Context, videoID, userID string, t models.PermissionType, grantedBy string) error {
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO video_access_permissions (video_id, user_id, permission_type, granted_by)
VALUES ($1,$2,$3,$4)`, videoID, userID, string(t), grantedBy)
	return err
}
