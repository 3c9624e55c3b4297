package storage

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"backend/models"
)

func InitDB() *sql.DB {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	user := os.Getenv("DB_USER")
	password := os.Getenv("DB_PASSWORD")
	dbname := os.Getenv("DB_NAME")
	host := os.Getenv("DB_HOST")
	port := os.Getenv("DB_PORT")

	connStr := fmt.Sprintf("user=%s password=%s dbname=%s host=%s port=%s sslmode=disable",
		user, password, dbname, host, port)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}

	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database:", err)
	}

	return db
}

// SaveSession creates a new session row. If allowMultipleSessions is false,
// existing sessions for the user are removed first so only one device stays
// logged in.
func SaveSession(db *sql.DB, session *models.Session, allowMultipleSessions bool) error {
	if !allowMultipleSessions {
		if _, err := db.Exec(`DELETE FROM session WHERE user_id = $1`, session.UserID); err != nil {
			return err
		}
	}

	_, err := db.Exec(`
		INSERT INTO session (session_id, user_id, host_name, ip_address, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		session.SessionID, session.UserID, session.HostName, session.IPAddress,
		session.CreatedAt, session.ExpiresAt,
	)
	return err
}

// DeleteSession removes one session row. Concurrent tabs sharing the same
// cookie lose access on their next request: identity is resolved from this
// table every time, never cached.
func DeleteSession(db *sql.DB, sessionID string) error {
	_, err := db.Exec(`DELETE FROM session WHERE session_id = $1`, sessionID)
	return err
}

// DeleteUserSessions logs a user out of every device.
func DeleteUserSessions(db *sql.DB, userID int) error {
	_, err := db.Exec(`DELETE FROM session WHERE user_id = $1`, userID)
	return err
}

// SweepExpiredSessions removes expired session rows (cron housekeeping).
func SweepExpiredSessions(db *sql.DB) (int64, error) {
	res, err := db.Exec(`DELETE FROM session WHERE expires_at <= NOW()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ResolveIdentity validates a session id against the live session store and
// returns the acting identity with its company and role. Expired or missing
// sessions fail; so do suspended users and inactive profiles.
func ResolveIdentity(db *sql.DB, sessionID string) (models.Identity, error) {
	var identity models.Identity
	var companyID sql.NullInt64
	err := db.QueryRow(`
		SELECT u.id, u.email, p.role, p.company_id
		FROM session s
		JOIN users u ON u.id = s.user_id
		JOIN user_company_profiles p ON p.user_id = u.id
		WHERE s.session_id = $1
		  AND s.expires_at > NOW()
		  AND u.suspended = FALSE
		  AND p.is_active = TRUE`,
		sessionID,
	).Scan(&identity.UserID, &identity.Email, &identity.Role, &companyID)
	if err != nil {
		return models.Identity{}, err
	}
	identity.CompanyID = int(companyID.Int64)
	return identity, nil
}

func GetUserByEmail(db *sql.DB, email string) (*models.User, error) {
	var user models.User
	err := db.QueryRow(`
		SELECT id, email, password, first_name, last_name, suspended, created_at, updated_at
		FROM users WHERE email = $1`, email,
	).Scan(&user.ID, &user.Email, &user.Password, &user.FirstName, &user.LastName,
		&user.Suspended, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetProfileForUser returns the user's company binding and role.
func GetProfileForUser(db *sql.DB, userID int) (*models.UserCompanyProfile, error) {
	var profile models.UserCompanyProfile
	var companyID sql.NullInt64
	err := db.QueryRow(`
		SELECT id, user_id, company_id, role, is_active
		FROM user_company_profiles WHERE user_id = $1`, userID,
	).Scan(&profile.ID, &profile.UserID, &companyID, &profile.Role, &profile.IsActive)
	if err != nil {
		return nil, err
	}
	profile.CompanyID = int(companyID.Int64)
	return &profile, nil
}
