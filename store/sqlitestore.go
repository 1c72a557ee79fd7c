package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore is the reference durable Store, backed by database/sql over
// github.com/mattn/go-sqlite3. spec.md §4.4/§6.4 requires a key-value
// store with ordered secondary indices but deliberately does not mandate
// an engine; SQLite gives every required index (contacts.verification,
// outbox.status/recipient_fp, inbox.sender_fp/payload_type/read,
// partial_chunks.msg_id) a real B-tree and makes seen.CheckAndMark a
// single atomic statement, following the same database/sql-over-a-driver
// shape as the example pack's Chartly2.0 relational store.
type SQLiteStore struct {
	db     *sql.DB
	logger *logrus.Entry
}

// NewSQLiteStore opens (creating if necessary) a SQLite database at path
// and ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, ErrStorageErrorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 driver is not safe for concurrent writers

	s := &SQLiteStore{db: db, logger: logrus.WithFields(logrus.Fields{"package": "store", "backend": "sqlite"})}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func ErrStorageErrorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

func (s *SQLiteStore) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS own_keys (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			signing_public BLOB NOT NULL,
			signing_private BLOB NOT NULL,
			box_public BLOB NOT NULL,
			box_private BLOB NOT NULL,
			display_name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			fingerprint BLOB PRIMARY KEY,
			signing_pk BLOB NOT NULL,
			box_pk BLOB NOT NULL,
			display_name TEXT NOT NULL,
			verification TEXT NOT NULL,
			added_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			verified_at INTEGER,
			compromised_at INTEGER,
			compromised_reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_verification ON contacts(verification)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			msg_id BLOB PRIMARY KEY,
			recipient_fp BLOB NOT NULL,
			envelope BLOB NOT NULL,
			created_at INTEGER NOT NULL,
			status TEXT NOT NULL,
			attempts INTEGER NOT NULL,
			last_attempt INTEGER,
			exp INTEGER NOT NULL,
			payload_type TEXT NOT NULL,
			urgency TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_status ON outbox(status)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_recipient ON outbox(recipient_fp)`,
		`CREATE TABLE IF NOT EXISTS inbox (
			msg_id BLOB PRIMARY KEY,
			sender_fp BLOB NOT NULL,
			content TEXT NOT NULL,
			payload_type TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			ts INTEGER NOT NULL,
			received_at INTEGER NOT NULL,
			read INTEGER NOT NULL,
			original_envelope BLOB NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_inbox_sender ON inbox(sender_fp)`,
		`CREATE INDEX IF NOT EXISTS idx_inbox_type ON inbox(payload_type)`,
		`CREATE INDEX IF NOT EXISTS idx_inbox_read ON inbox(read)`,
		`CREATE TABLE IF NOT EXISTS seen (
			msg_id BLOB NOT NULL,
			sender_fp BLOB NOT NULL,
			seen_at INTEGER NOT NULL,
			PRIMARY KEY (msg_id, sender_fp)
		)`,
		`CREATE TABLE IF NOT EXISTS forwarded (
			peer_fp BLOB NOT NULL,
			msg_id BLOB NOT NULL,
			forwarded_at INTEGER NOT NULL,
			PRIMARY KEY (peer_fp, msg_id)
		)`,
		`CREATE TABLE IF NOT EXISTS partial_chunks (
			msg_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			total INTEGER NOT NULL,
			data TEXT NOT NULL,
			received_at INTEGER NOT NULL,
			PRIMARY KEY (msg_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_partial_chunks_msgid ON partial_chunks(msg_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return ErrStorageErrorf("ensure schema: %w", err)
		}
	}
	return nil
}

// --- Keys ---

func (s *SQLiteStore) PutOwnKeys(ctx context.Context, k *OwnKeys) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO own_keys (id, signing_public, signing_private, box_public, box_private, display_name)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			signing_public=excluded.signing_public, signing_private=excluded.signing_private,
			box_public=excluded.box_public, box_private=excluded.box_private,
			display_name=excluded.display_name`,
		k.SigningPublic[:], k.SigningPrivate[:], k.BoxPublic[:], k.BoxPrivate[:], k.DisplayName)
	return err
}

func (s *SQLiteStore) GetOwnKeys(ctx context.Context) (*OwnKeys, error) {
	row := s.db.QueryRowContext(ctx, `SELECT signing_public, signing_private, box_public, box_private, display_name FROM own_keys WHERE id=1`)
	var signPub, signPriv, boxPub, boxPriv []byte
	var name string
	if err := row.Scan(&signPub, &signPriv, &boxPub, &boxPriv, &name); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	k := &OwnKeys{DisplayName: name}
	copy(k.SigningPublic[:], signPub)
	copy(k.SigningPrivate[:], signPriv)
	copy(k.BoxPublic[:], boxPub)
	copy(k.BoxPrivate[:], boxPriv)
	return k, nil
}

func (s *SQLiteStore) DeleteOwnKeys(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM own_keys WHERE id=1`)
	return err
}

// --- Contacts ---

func (s *SQLiteStore) SaveContact(ctx context.Context, c *Contact) error {
	existing, err := s.GetContact(ctx, c.Fingerprint)
	if err == nil {
		if existing.SigningPK != c.SigningPK || existing.BoxPK != c.BoxPK {
			return ErrKeyChangeRefused
		}
	} else if err != ErrNotFound {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO contacts (fingerprint, signing_pk, box_pk, display_name, verification, added_at, updated_at, verified_at, compromised_at, compromised_reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO UPDATE SET
			display_name=excluded.display_name, verification=excluded.verification,
			updated_at=excluded.updated_at, verified_at=excluded.verified_at,
			compromised_at=excluded.compromised_at, compromised_reason=excluded.compromised_reason`,
		c.Fingerprint[:], c.SigningPK[:], c.BoxPK[:], c.DisplayName, string(c.Verification),
		timeToMs(c.AddedAt), timeToMs(c.UpdatedAt), timePtrToMs(c.VerifiedAt), timePtrToMs(c.CompromisedAt), c.CompromisedReason)
	return err
}

func scanContact(row interface{ Scan(...interface{}) error }) (*Contact, error) {
	var fp, signPK, boxPK []byte
	var name, verification, reason string
	var addedAt, updatedAt int64
	var verifiedAt, compromisedAt sql.NullInt64
	if err := row.Scan(&fp, &signPK, &boxPK, &name, &verification, &addedAt, &updatedAt, &verifiedAt, &compromisedAt, &reason); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	c := &Contact{DisplayName: name, Verification: Verification(verification), CompromisedReason: reason}
	copy(c.Fingerprint[:], fp)
	copy(c.SigningPK[:], signPK)
	copy(c.BoxPK[:], boxPK)
	c.AddedAt = msToTime(addedAt)
	c.UpdatedAt = msToTime(updatedAt)
	if verifiedAt.Valid {
		t := msToTime(verifiedAt.Int64)
		c.VerifiedAt = &t
	}
	if compromisedAt.Valid {
		t := msToTime(compromisedAt.Int64)
		c.CompromisedAt = &t
	}
	return c, nil
}

func (s *SQLiteStore) GetContact(ctx context.Context, fp [16]byte) (*Contact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT fingerprint, signing_pk, box_pk, display_name, verification, added_at, updated_at, verified_at, compromised_at, compromised_reason FROM contacts WHERE fingerprint=?`, fp[:])
	return scanContact(row)
}

func (s *SQLiteStore) queryContacts(ctx context.Context, query string, args ...interface{}) ([]*Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*Contact, 0)
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AllContacts(ctx context.Context) ([]*Contact, error) {
	return s.queryContacts(ctx, `SELECT fingerprint, signing_pk, box_pk, display_name, verification, added_at, updated_at, verified_at, compromised_at, compromised_reason FROM contacts ORDER BY display_name`)
}

func (s *SQLiteStore) ContactsWhere(ctx context.Context, v Verification) ([]*Contact, error) {
	return s.queryContacts(ctx, `SELECT fingerprint, signing_pk, box_pk, display_name, verification, added_at, updated_at, verified_at, compromised_at, compromised_reason FROM contacts WHERE verification=? ORDER BY display_name`, string(v))
}

func (s *SQLiteStore) VerifyContact(ctx context.Context, fp [16]byte) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE contacts SET verification=?, verified_at=?, updated_at=? WHERE fingerprint=?`,
		string(Verified), timeToMs(now), timeToMs(now), fp[:])
	return checkRowsAffected(res, err)
}

func (s *SQLiteStore) MarkCompromised(ctx context.Context, fp [16]byte, reason string) error {
	now := time.Now()
	res, err := s.db.ExecContext(ctx, `UPDATE contacts SET verification=?, compromised_at=?, compromised_reason=?, updated_at=? WHERE fingerprint=?`,
		string(Compromised), timeToMs(now), reason, timeToMs(now), fp[:])
	return checkRowsAffected(res, err)
}

func (s *SQLiteStore) DeleteContact(ctx context.Context, fp [16]byte) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM contacts WHERE fingerprint=?`, fp[:])
	return err
}

// --- Outbox ---

func (s *SQLiteStore) AddOutbox(ctx context.Context, e *OutboxEntry) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outbox (msg_id, recipient_fp, envelope, created_at, status, attempts, last_attempt, exp, payload_type, urgency)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO NOTHING`,
		e.MsgID[:], e.RecipientFp[:], e.MessageEnvelope, timeToMs(e.CreatedAt), string(e.Status), e.Attempts, timePtrToMs(e.LastAttempt), e.Exp, e.PayloadType, e.Urgency)
	return err
}

func scanOutbox(row interface{ Scan(...interface{}) error }) (*OutboxEntry, error) {
	var msgID, recipientFp, envelope []byte
	var createdAt, exp int64
	var status, payloadType, urgency string
	var attempts int
	var lastAttempt sql.NullInt64
	if err := row.Scan(&msgID, &recipientFp, &envelope, &createdAt, &status, &attempts, &lastAttempt, &exp, &payloadType, &urgency); err != nil {
		return nil, err
	}
	e := &OutboxEntry{MessageEnvelope: envelope, Status: OutboxStatus(status), Attempts: attempts, Exp: exp, PayloadType: payloadType, Urgency: urgency}
	copy(e.MsgID[:], msgID)
	copy(e.RecipientFp[:], recipientFp)
	e.CreatedAt = msToTime(createdAt)
	if lastAttempt.Valid {
		t := msToTime(lastAttempt.Int64)
		e.LastAttempt = &t
	}
	return e, nil
}

func (s *SQLiteStore) queryOutbox(ctx context.Context, query string, args ...interface{}) ([]*OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*OutboxEntry, 0)
	for rows.Next() {
		e, err := scanOutbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) PendingOutbox(ctx context.Context) ([]*OutboxEntry, error) {
	return s.queryOutbox(ctx, `SELECT msg_id, recipient_fp, envelope, created_at, status, attempts, last_attempt, exp, payload_type, urgency FROM outbox WHERE status IN (?, ?)`,
		string(StatusPending), string(StatusSent))
}

func (s *SQLiteStore) OutboxForRecipient(ctx context.Context, fp [16]byte) ([]*OutboxEntry, error) {
	return s.queryOutbox(ctx, `SELECT msg_id, recipient_fp, envelope, created_at, status, attempts, last_attempt, exp, payload_type, urgency FROM outbox WHERE recipient_fp=?`, fp[:])
}

func (s *SQLiteStore) UpdateOutboxStatus(ctx context.Context, msgID [32]byte, status OutboxStatus) error {
	now := timeToMs(time.Now())
	var res sql.Result
	var err error
	if status == StatusSent || status == StatusFailed {
		res, err = s.db.ExecContext(ctx, `UPDATE outbox SET status=?, last_attempt=?, attempts=attempts+1 WHERE msg_id=?`, string(status), now, msgID[:])
	} else {
		res, err = s.db.ExecContext(ctx, `UPDATE outbox SET status=?, last_attempt=? WHERE msg_id=?`, string(status), now, msgID[:])
	}
	return checkRowsAffected(res, err)
}

func (s *SQLiteStore) RemoveOutbox(ctx context.Context, msgID [32]byte) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM outbox WHERE msg_id=?`, msgID[:])
	return err
}

// --- Inbox ---

func (s *SQLiteStore) AddInbox(ctx context.Context, e *InboxEntry) error {
	payloadJSON, err := json.Marshal(e.Payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO inbox (msg_id, sender_fp, content, payload_type, payload_json, ts, received_at, read, original_envelope)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(msg_id) DO NOTHING`,
		e.MsgID[:], e.SenderFp[:], e.Content, e.PayloadType, string(payloadJSON), e.Ts, timeToMs(e.ReceivedAt), boolToInt(e.Read), e.OriginalEnvelope)
	return err
}

func scanInbox(row interface{ Scan(...interface{}) error }) (*InboxEntry, error) {
	var msgID, senderFp, originalEnvelope []byte
	var content, payloadType, payloadJSON string
	var ts, receivedAt int64
	var read int
	if err := row.Scan(&msgID, &senderFp, &content, &payloadType, &payloadJSON, &ts, &receivedAt, &read, &originalEnvelope); err != nil {
		return nil, err
	}
	e := &InboxEntry{Content: content, PayloadType: payloadType, Ts: ts, Read: read != 0, OriginalEnvelope: originalEnvelope}
	copy(e.MsgID[:], msgID)
	copy(e.SenderFp[:], senderFp)
	e.ReceivedAt = msToTime(receivedAt)
	_ = json.Unmarshal([]byte(payloadJSON), &e.Payload)
	return e, nil
}

func (s *SQLiteStore) queryInbox(ctx context.Context, query string, args ...interface{}) ([]*InboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*InboxEntry, 0)
	for rows.Next() {
		e, err := scanInbox(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AllInbox(ctx context.Context) ([]*InboxEntry, error) {
	return s.queryInbox(ctx, `SELECT msg_id, sender_fp, content, payload_type, payload_json, ts, received_at, read, original_envelope FROM inbox ORDER BY received_at DESC`)
}

func (s *SQLiteStore) UnreadInbox(ctx context.Context) ([]*InboxEntry, error) {
	return s.queryInbox(ctx, `SELECT msg_id, sender_fp, content, payload_type, payload_json, ts, received_at, read, original_envelope FROM inbox WHERE read=0 ORDER BY received_at DESC`)
}

func (s *SQLiteStore) InboxFromSender(ctx context.Context, fp [16]byte) ([]*InboxEntry, error) {
	return s.queryInbox(ctx, `SELECT msg_id, sender_fp, content, payload_type, payload_json, ts, received_at, read, original_envelope FROM inbox WHERE sender_fp=? ORDER BY received_at DESC`, fp[:])
}

func (s *SQLiteStore) InboxByType(ctx context.Context, payloadType string) ([]*InboxEntry, error) {
	return s.queryInbox(ctx, `SELECT msg_id, sender_fp, content, payload_type, payload_json, ts, received_at, read, original_envelope FROM inbox WHERE payload_type=? ORDER BY received_at DESC`, payloadType)
}

func (s *SQLiteStore) MarkRead(ctx context.Context, msgID [32]byte) error {
	res, err := s.db.ExecContext(ctx, `UPDATE inbox SET read=1 WHERE msg_id=?`, msgID[:])
	return checkRowsAffected(res, err)
}

func (s *SQLiteStore) DeleteInbox(ctx context.Context, msgID [32]byte) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM inbox WHERE msg_id=?`, msgID[:])
	return err
}

// --- Seen ---

func (s *SQLiteStore) CheckAndMark(ctx context.Context, msgID [32]byte, senderFp [16]byte) (bool, error) {
	res, err := s.db.ExecContext(ctx, `INSERT INTO seen (msg_id, sender_fp, seen_at) VALUES (?, ?, ?) ON CONFLICT(msg_id, sender_fp) DO NOTHING`,
		msgID[:], senderFp[:], timeToMs(time.Now()))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) HasSeen(ctx context.Context, msgID [32]byte, senderFp [16]byte) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM seen WHERE msg_id=? AND sender_fp=?`, msgID[:], senderFp[:]).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) CleanupSeen(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := timeToMs(time.Now().Add(-maxAge))
	res, err := s.db.ExecContext(ctx, `DELETE FROM seen WHERE seen_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// --- Forwarded ---

func (s *SQLiteStore) MarkForwarded(ctx context.Context, peerFp [16]byte, msgID [32]byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO forwarded (peer_fp, msg_id, forwarded_at) VALUES (?, ?, ?) ON CONFLICT(peer_fp, msg_id) DO NOTHING`,
		peerFp[:], msgID[:], timeToMs(time.Now()))
	return err
}

func (s *SQLiteStore) WasForwarded(ctx context.Context, peerFp [16]byte, msgID [32]byte) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM forwarded WHERE peer_fp=? AND msg_id=?`, peerFp[:], msgID[:]).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) ForwardedTo(ctx context.Context, peerFp [16]byte) ([][32]byte, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT msg_id FROM forwarded WHERE peer_fp=?`, peerFp[:])
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([][32]byte, 0)
	for rows.Next() {
		var msgID []byte
		if err := rows.Scan(&msgID); err != nil {
			return nil, err
		}
		var id [32]byte
		copy(id[:], msgID)
		out = append(out, id)
	}
	return out, rows.Err()
}

// --- Chunks ---

func (s *SQLiteStore) StoreChunk(ctx context.Context, c *PartialChunkEntry) ([]*PartialChunkEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var count int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM partial_chunks WHERE msg_id=?`, c.MsgID).Scan(&count); err != nil {
		return nil, err
	}
	if count >= MaxChunksPerMsgID {
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM partial_chunks WHERE msg_id=? AND seq = (
				SELECT seq FROM partial_chunks WHERE msg_id=? ORDER BY received_at ASC LIMIT 1)`,
			c.MsgID, c.MsgID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO partial_chunks (msg_id, seq, total, data, received_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(msg_id, seq) DO UPDATE SET data=excluded.data, received_at=excluded.received_at`,
		c.MsgID, c.Seq, c.Total, c.Data, timeToMs(c.ReceivedAt)); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT seq, total, data, received_at FROM partial_chunks WHERE msg_id=? ORDER BY seq`, c.MsgID)
	if err != nil {
		return nil, err
	}
	var set []*PartialChunkEntry
	for rows.Next() {
		var seq, total int
		var data string
		var receivedAt int64
		if err := rows.Scan(&seq, &total, &data, &receivedAt); err != nil {
			rows.Close()
			return nil, err
		}
		set = append(set, &PartialChunkEntry{MsgID: c.MsgID, Seq: seq, Total: total, Data: data, ReceivedAt: msToTime(receivedAt)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(set) == 0 || len(set) != set[0].Total {
		return nil, tx.Commit()
	}
	complete := true
	for i, e := range set {
		if e.Seq != i {
			complete = false
			break
		}
	}
	if !complete {
		return nil, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM partial_chunks WHERE msg_id=?`, c.MsgID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return set, nil
}

func (s *SQLiteStore) CleanupChunks(ctx context.Context, maxAge time.Duration) (int, error) {
	cutoff := timeToMs(time.Now().Add(-maxAge))
	res, err := s.db.ExecContext(ctx, `DELETE FROM partial_chunks WHERE received_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// --- Maintenance ---

func (s *SQLiteStore) RunMaintenance(ctx context.Context) error {
	if _, err := s.CleanupSeen(ctx, SeenRetention); err != nil {
		return err
	}
	if _, err := s.CleanupChunks(ctx, ChunkMaxAge); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	queries := []struct {
		table string
		dest  *int
	}{
		{"contacts", &st.Contacts},
		{"outbox", &st.Outbox},
		{"inbox", &st.Inbox},
		{"seen", &st.Seen},
		{"forwarded", &st.Forwarded},
		{"partial_chunks", &st.PartialChunks},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, q.table)).Scan(q.dest); err != nil {
			return Stats{}, err
		}
	}
	return st, nil
}

func timeToMs(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func timePtrToMs(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func msToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func checkRowsAffected(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
