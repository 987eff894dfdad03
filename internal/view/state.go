// Package view holds the presentation state shared by the web and terminal
// surfaces: the inventory snapshot, the search box, the sort toggle and the
// add/edit editor.
package view

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"stockroom-cli/internal/inventory"
	"stockroom-cli/internal/model"
)

// Inventory is the part of inventory.Service the view drives.
type Inventory interface {
	FetchAll(ctx context.Context) ([]model.Item, error)
	AddOrIncrement(ctx context.Context, name string, quantity int) (inventory.Result, error)
	Increment(ctx context.Context, name string) (inventory.Result, error)
	RemoveOrDecrement(ctx context.Context, name string) (inventory.Result, error)
	Rename(ctx context.Context, oldName, newName string, newQuantity int) (inventory.Result, error)
}

// State is the view state. The zero value is usable and collates with
// English rules.
type State struct {
	// Items is the last fetched inventory in store order. Never sorted in place.
	Items []model.Item

	Search     string
	SearchOpen bool
	Sort       model.SortOrder

	EditorOpen bool
	// Editing is the edit target; nil means the editor adds.
	Editing       *model.Item
	NameField     string
	QuantityField string
	// Err is the inline editor error, if any.
	Err error

	lang language.Tag
}

func New(locale string) *State {
	s := &State{Sort: model.SortDefault}
	s.SetLocale(locale)
	return s
}

// SetLocale picks the collation language. Unknown tags fall back to English.
func (s *State) SetLocale(locale string) {
	tag, err := language.Parse(strings.TrimSpace(locale))
	if err != nil || tag == language.Und {
		tag = language.English
	}
	s.lang = tag
}

func (s *State) Locale() language.Tag {
	if s.lang == language.Und {
		return language.English
	}
	return s.lang
}

// Replace swaps in a freshly fetched inventory.
func (s *State) Replace(items []model.Item) {
	s.Items = append([]model.Item(nil), items...)
}

// Visible filters by the search string, then sorts. The result is a new slice.
func (s *State) Visible() []model.Item {
	q := strings.ToLower(s.Search)
	out := make([]model.Item, 0, len(s.Items))
	for _, it := range s.Items {
		if q == "" || strings.Contains(strings.ToLower(it.Name), q) {
			out = append(out, it)
		}
	}

	switch s.Sort {
	case model.SortAsc, model.SortDesc:
		c := collate.New(s.Locale())
		desc := s.Sort == model.SortDesc
		sort.SliceStable(out, func(i, j int) bool {
			cmp := c.CompareString(out[i].Name, out[j].Name)
			if desc {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	return out
}

// ToggleSort cycles default -> asc -> desc -> default.
func (s *State) ToggleSort() model.SortOrder {
	s.Sort = s.Sort.Next()
	return s.Sort
}

func (s *State) SortLabel() string {
	switch s.Sort {
	case model.SortAsc:
		return "A-Z"
	case model.SortDesc:
		return "Z-A"
	default:
		return "Default"
	}
}

func (s *State) OpenSearch()  { s.SearchOpen = true }
func (s *State) CloseSearch() { s.SearchOpen = false }

func (s *State) SetSearch(q string) { s.Search = q }
func (s *State) ClearSearch()       { s.Search = "" }

// OpenAdd opens an empty editor in add mode.
func (s *State) OpenAdd() {
	s.CloseEditor()
	s.EditorOpen = true
}

// BeginEdit opens the editor on it with its current values.
func (s *State) BeginEdit(it model.Item) {
	s.CloseEditor()
	target := it
	s.Editing = &target
	s.NameField = it.Name
	s.QuantityField = strconv.Itoa(it.Quantity)
	s.EditorOpen = true
}

// CloseEditor clears the fields, the error and the edit target.
func (s *State) CloseEditor() {
	s.EditorOpen = false
	s.Editing = nil
	s.NameField = ""
	s.QuantityField = ""
	s.Err = nil
}

// Submission is a validated editor save, ready to run against the store.
type Submission struct {
	// OldName is set when renaming an existing item.
	OldName  string
	Name     string
	Quantity int
}

func (sub Submission) IsEdit() bool { return sub.OldName != "" }

// Run performs the store call: Rename for edits, AddOrIncrement otherwise.
func (sub Submission) Run(ctx context.Context, inv Inventory) (inventory.Result, error) {
	if sub.IsEdit() {
		return inv.Rename(ctx, sub.OldName, sub.Name, sub.Quantity)
	}
	return inv.AddOrIncrement(ctx, sub.Name, sub.Quantity)
}

// Validate checks the editor fields. On failure the error is also kept in Err
// and no store call must be made.
func (s *State) Validate() (Submission, error) {
	sub, err := validateFields(s.NameField, s.QuantityField)
	if err != nil {
		s.Err = err
		return Submission{}, err
	}
	if s.Editing != nil {
		sub.OldName = s.Editing.Name
	}
	s.Err = nil
	return sub, nil
}

func validateFields(name, quantity string) (Submission, error) {
	if strings.TrimSpace(name) == "" || strings.TrimSpace(quantity) == "" {
		return Submission{}, &ValidationError{Message: MsgBothRequired}
	}
	q, err := strconv.Atoi(strings.TrimSpace(quantity))
	if err != nil {
		return Submission{}, &ValidationError{Field: FieldQuantity, Message: MsgQuantityNotNumber}
	}
	if q < 1 {
		return Submission{}, &ValidationError{Field: FieldQuantity, Message: MsgQuantityTooSmall}
	}
	return Submission{Name: name, Quantity: q}, nil
}

// Saved applies the outcome of a submission: on success the snapshot is
// replaced and the editor closed; on failure the editor stays open with Err set.
func (s *State) Saved(res inventory.Result, err error) {
	if err != nil {
		s.Err = err
		return
	}
	s.Replace(res.Items)
	s.CloseEditor()
}

// Save validates, runs and applies the editor submission.
func (s *State) Save(ctx context.Context, inv Inventory) error {
	sub, err := s.Validate()
	if err != nil {
		return err
	}
	res, err := sub.Run(ctx, inv)
	s.Saved(res, err)
	return err
}

func (s *State) Increment(ctx context.Context, inv Inventory, name string) error {
	res, err := inv.Increment(ctx, name)
	if err != nil {
		return err
	}
	s.Replace(res.Items)
	return nil
}

// Decrement lowers name by one. An item that vanished meanwhile just
// triggers a refresh.
func (s *State) Decrement(ctx context.Context, inv Inventory, name string) error {
	res, err := inv.RemoveOrDecrement(ctx, name)
	if errors.Is(err, inventory.ErrNotFound) {
		return s.Refresh(ctx, inv)
	}
	if err != nil {
		return err
	}
	s.Replace(res.Items)
	return nil
}

func (s *State) Refresh(ctx context.Context, inv Inventory) error {
	items, err := inv.FetchAll(ctx)
	if err != nil {
		return err
	}
	s.Replace(items)
	return nil
}

// DisplayName capitalizes the first letter only.
func DisplayName(name string) string {
	r, size := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return name
	}
	return strings.ToUpper(string(r)) + name[size:]
}
