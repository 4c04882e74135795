// Package gormtracker adapts the framework-agnostic tracker to GORM: a
// column type that marshals an AttachedFile to/from its database column,
// and a Session that wires Attachment Field assignment into a transaction's
// commit/rollback lifecycle the way the source's Ming SessionExtension
// does for before_flush/after_flush.
package gormtracker

import (
	"database/sql/driver"
	"fmt"

	"github.com/depotgo/depot/pkg/attachment"
)

// Column is a GORM column type holding an AttachedFile (or the zero value,
// meaning the column is unset). Embed it in a model struct with a text
// column type, e.g.:
//
//	type User struct {
//	    gorm.Model
//	    Avatar gormtracker.Column `gorm:"type:text"`
//	}
type Column struct {
	attachment.AttachedFile
	set bool
}

// Set reports whether the column currently holds a value.
func (c Column) Set() bool { return c.set }

// Scan implements sql.Scanner, decoding the stored JSON string.
func (c *Column) Scan(value any) error {
	if value == nil {
		*c = Column{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("gormtracker: unsupported column source type %T", value)
	}

	if len(data) == 0 {
		*c = Column{}
		return nil
	}

	af, err := attachment.Decode(data)
	if err != nil {
		return err
	}
	c.AttachedFile = *af
	c.set = true
	return nil
}

// Value implements driver.Valuer, encoding to the JSON string form.
func (c Column) Value() (driver.Value, error) {
	if !c.set {
		return nil, nil
	}
	encoded, err := c.Encode()
	if err != nil {
		return nil, err
	}
	return encoded, nil
}
