package dal

import (
	"errors"

	"github.com/Billy-Davies-2/warband-roster/internal/models"
)

// ErrNoDocument is returned by Latest when nothing has been saved yet
var ErrNoDocument = errors.New("no saved document")

// DefaultHistory is how many snapshots the SQL stores keep when not configured
const DefaultHistory = 20

// DocumentDAL stores whole-document snapshots. The newest snapshot is the
// current save; older ones are kept as history up to a retention limit.
type DocumentDAL interface {
	Latest() (*models.Document, error)
	Save(doc *models.Document) (models.Snapshot, error)
	// History lists snapshots newest first, without document bodies
	History(limit int) ([]models.Snapshot, error)
	Reset() error
	Close() error
}

func summarize(doc *models.Document) (players, groups int) {
	return len(doc.Players), len(doc.Groups)
}
