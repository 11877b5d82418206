package database

import (
	"database/sql"
	"time"

	"github.com/korjavin/zahlbot/models"
	_ "github.com/mattn/go-sqlite3"
)

// DB handles all database operations
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes tables
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if err = db.Ping(); err != nil {
		return nil, err
	}

	if err = createTables(db); err != nil {
		return nil, err
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	// Create question library table
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS questions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			question TEXT NOT NULL,
			number INTEGER NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	// Create single-row current answer table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS current_answer (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			question TEXT NOT NULL,
			number INTEGER NOT NULL,
			source TEXT NOT NULL,
			timestamp INTEGER NOT NULL
		)
	`)
	return err
}

// AppendQuestion stores a question/number pair in the library
func (db *DB) AppendQuestion(question string, number int) error {
	_, err := db.conn.Exec(
		"INSERT INTO questions (question, number) VALUES (?, ?)",
		question, number,
	)
	return err
}

// LoadQuestions returns all stored pairs in insertion order
func (db *DB) LoadQuestions() ([]models.QAEntry, error) {
	rows, err := db.conn.Query("SELECT question, number FROM questions ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.QAEntry
	for rows.Next() {
		var entry models.QAEntry
		if err := rows.Scan(&entry.Question, &entry.Number); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// SaveCurrentAnswer overwrites the single current answer row
func (db *DB) SaveCurrentAnswer(answer models.CurrentAnswer) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO current_answer (id, question, number, source, timestamp) VALUES (1, ?, ?, ?, ?)",
		answer.Question, answer.Number, string(answer.Source), answer.Timestamp.Unix(),
	)
	return err
}

// LoadCurrentAnswer retrieves the current answer. The second return value
// is false when no answer has been stored yet.
func (db *DB) LoadCurrentAnswer() (models.CurrentAnswer, bool, error) {
	var answer models.CurrentAnswer
	var source string
	var timestamp int64

	err := db.conn.QueryRow(
		"SELECT question, number, source, timestamp FROM current_answer WHERE id = 1",
	).Scan(&answer.Question, &answer.Number, &source, &timestamp)

	if err == sql.ErrNoRows {
		return models.CurrentAnswer{}, false, nil
	}
	if err != nil {
		return models.CurrentAnswer{}, false, err
	}

	answer.Source = models.Source(source)
	answer.Timestamp = time.Unix(timestamp, 0)
	return answer, true, nil
}
