package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// NumberPlaceholder is the token substituted by FormatNumber.
const NumberPlaceholder = "{number}"

const numberingFileName = "numbering.json"

// NumberingState is the persisted per-folder numbering configuration.
type NumberingState struct {
	LastIssuedNumber int    `json:"lastIssuedNumber"`
	Format           string `json:"format"`
}

// Numbering assigns case numbers for one target folder.
//
// The next number is derived by scanning the folder's existing case records
// rather than trusting the persisted counter alone, so a copied or manually
// pruned folder self-heals; the persisted counter acts as a floor so numbers
// are never reissued after the highest-numbered record is deleted.
type Numbering struct {
	store *Store
	start int
}

// NewNumbering returns a numbering service over the store's folder.
// start is the first number issued in an empty folder (minimum 1).
func NewNumbering(store *Store, start int) *Numbering {
	if start < 1 {
		start = 1
	}
	return &Numbering{store: store, start: start}
}

func (n *Numbering) statePath() string {
	return filepath.Join(n.store.DataDir(), numberingFileName)
}

// State loads the persisted numbering state, substituting defaults when the
// file is absent or lacks newer fields.
func (n *Numbering) State(ctx context.Context) (NumberingState, error) {
	state := NumberingState{Format: NumberPlaceholder}
	if err := ctx.Err(); err != nil {
		return state, err
	}
	data, err := os.ReadFile(n.statePath())
	if err != nil {
		if os.IsNotExist(err) {
			return state, nil
		}
		return state, fmt.Errorf("snapshot: read numbering state: %w", err)
	}
	if err := json.Unmarshal(data, &state); err != nil {
		return state, fmt.Errorf("snapshot: decode numbering state: %w", err)
	}
	if strings.TrimSpace(state.Format) == "" {
		state.Format = NumberPlaceholder
	}
	return state, nil
}

// Next returns the next unused case number: one past the maximum of the
// folder scan and the persisted counter. An empty folder yields the
// configured starting number. Lookup failures surface to the caller; a
// silent default could collide with existing numbers.
func (n *Numbering) Next(ctx context.Context) (int, error) {
	numbers, err := n.store.ListCaseNumbers(ctx)
	if err != nil {
		return 0, err
	}
	state, err := n.State(ctx)
	if err != nil {
		return 0, err
	}
	max := state.LastIssuedNumber
	if len(numbers) > 0 && numbers[len(numbers)-1] > max {
		max = numbers[len(numbers)-1]
	}
	if max < n.start-1 {
		return n.start, nil
	}
	return max + 1, nil
}

// Reuse validates that caseNumber was previously issued in this folder.
// The modify flow calls it so the same number is kept rather than advanced.
func (n *Numbering) Reuse(ctx context.Context, caseNumber int) error {
	numbers, err := n.store.ListCaseNumbers(ctx)
	if err != nil {
		return err
	}
	for _, num := range numbers {
		if num == caseNumber {
			return nil
		}
	}
	return fmt.Errorf("%w: case %d in %s", ErrNotFound, caseNumber, n.store.Folder())
}

// Commit records that number was issued, along with the active format.
// Reused numbers never raise the counter.
func (n *Numbering) Commit(ctx context.Context, number int, format string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state, err := n.State(ctx)
	if err != nil {
		return err
	}
	if number > state.LastIssuedNumber {
		state.LastIssuedNumber = number
	}
	if strings.TrimSpace(format) != "" {
		state.Format = format
	}
	if err := os.MkdirAll(n.store.DataDir(), 0o755); err != nil {
		return fmt.Errorf("snapshot: create data dir: %w", err)
	}
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot: encode numbering state: %w", err)
	}
	return atomicWrite(n.statePath(), data)
}

// FormatNumber renders a case number with the user's format string. The
// numeric ordering invariant applies to the integer; the format only shapes
// display. A format without the placeholder is treated as a prefix, so the
// number can never be dropped from filenames.
func FormatNumber(number int, format string) string {
	digits := strconv.Itoa(number)
	format = strings.TrimSpace(format)
	if format == "" {
		return digits
	}
	if strings.Contains(format, NumberPlaceholder) {
		return strings.ReplaceAll(format, NumberPlaceholder, digits)
	}
	return format + digits
}
