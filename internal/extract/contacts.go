package extract

import (
	"context"
	"database/sql"

	"github.com/joestump/client-radar/internal/db"
)

// ContactRecord is one address-book entry. Identifier is never empty.
type ContactRecord struct {
	Identifier   string `json:"username" yaml:"username"`
	DisplayAlias string `json:"remark" yaml:"remark"`
	DisplayName  string `json:"nickname" yaml:"nickname"`
}

// contactsQuery reads the stable address-book schema. Group chats, official
// accounts and unverified entries are excluded.
const contactsQuery = `SELECT UserName, Remark, NickName
	FROM Contact
	WHERE UserName NOT LIKE '%@chatroom'
	AND UserName NOT LIKE 'gh_%'
	AND VerifyFlag = 0`

// ReadContacts reads contacts using the default engine.
func ReadContacts(ctx context.Context, path string) ([]ContactRecord, error) {
	return New().ReadContacts(ctx, path)
}

// ReadContacts reads the Contact table of the file at path. The schema is
// fixed, so there is no resolution phase; rows without an identifier are
// dropped.
func (e *Engine) ReadContacts(ctx context.Context, path string) ([]ContactRecord, error) {
	d, err := db.Open(ctx, path)
	if err != nil {
		return nil, &ConnectionError{Path: path, Err: err}
	}
	defer d.Close() //nolint:errcheck

	rows, err := d.Conn().QueryContext(ctx, contactsQuery)
	if err != nil {
		return nil, &QueryError{Query: contactsQuery, Err: err}
	}
	defer rows.Close() //nolint:errcheck

	var contacts []ContactRecord
	for rows.Next() {
		var user, remark, nick sql.NullString
		if err := rows.Scan(&user, &remark, &nick); err != nil {
			continue
		}
		if !user.Valid || user.String == "" {
			continue
		}
		contacts = append(contacts, ContactRecord{
			Identifier:   user.String,
			DisplayAlias: remark.String,
			DisplayName:  nick.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, &QueryError{Query: contactsQuery, Err: err}
	}

	e.log.Debug().Str("db", path).Int("contacts", len(contacts)).Msg("contacts read")
	return contacts, nil
}
