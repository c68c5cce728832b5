package menu

import (
	"time"

	"gorm.io/gorm"
)

// Reserved action verbs. Any other action value is the menu_type of the
// target menu.
const (
	actionBack = "back"
	actionExit = "exit"
)

// ActionKind discriminates the parsed form of an option's action string
type ActionKind int

const (
	// ActionGoto transitions to another menu
	ActionGoto ActionKind = iota
	// ActionBack pops the navigation history
	ActionBack
	// ActionExit ends the session
	ActionExit
)

// Action is the typed form of a raw option action string. Parsing happens
// once at the repository boundary so the interpreter can switch
// exhaustively instead of comparing strings.
type Action struct {
	Kind   ActionKind
	Target string // menu_type of the destination, set only for ActionGoto
}

// ParseAction converts a raw action string into its typed form
func ParseAction(raw string) Action {
	switch raw {
	case actionBack:
		return Action{Kind: ActionBack}
	case actionExit:
		return Action{Kind: ActionExit}
	default:
		return Action{Kind: ActionGoto, Target: raw}
	}
}

// Menu represents one screen in a menu tree, keyed by (menu_type, language)
type Menu struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"`

	MenuType string `json:"menu_type" gorm:"column:menu_type;size:50;not null;index:idx_menu_key"`
	Language string `json:"language" gorm:"column:language;size:8;not null;index:idx_menu_key"`
	Content  string `json:"content" gorm:"column:content;type:text;not null"`

	// IsDefault marks the canonical variant when several active menus
	// share a menu_type
	IsDefault bool `json:"is_default" gorm:"column:is_default;default:false"`
	IsActive  bool `json:"is_active" gorm:"column:is_active;default:true;index"`

	// IsTransactional marks screens whose scratch data must be mirrored
	// into a transaction record (amount entry, recipient entry, confirm)
	IsTransactional bool `json:"is_transactional" gorm:"column:is_transactional;default:false"`

	// TimeoutSeconds is the inactivity budget while this menu is shown.
	// Zero means use the platform default
	TimeoutSeconds int `json:"timeout_seconds" gorm:"column:timeout_seconds;default:0"`

	// CaptureKey turns the menu into a free-entry screen: input that
	// matches no option is stored in the session's scratch data under
	// this key and navigation continues to NextMenu. Declared options
	// (e.g. a back option) still take precedence
	CaptureKey string `json:"capture_key,omitempty" gorm:"column:capture_key;size:50"`
	NextMenu   string `json:"next_menu,omitempty" gorm:"column:next_menu;size:50"`

	Options []*Option `json:"options,omitempty" gorm:"foreignKey:MenuID;constraint:OnDelete:CASCADE"`
}

// TableName sets the table name for GORM
func (Menu) TableName() string {
	return "ussd_menus"
}

// Option is one selectable line of a menu. Input values are unique within
// a menu; Position fixes the rendering order
type Option struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`

	MenuID   uint   `json:"menu_id" gorm:"column:menu_id;not null;index"`
	Input    string `json:"input" gorm:"column:input;size:20;not null"`
	Label    string `json:"label" gorm:"column:label;size:255;not null"`
	Action   string `json:"action" gorm:"column:action;size:50;not null"`
	Position int    `json:"position" gorm:"column:position;default:0"`
}

// TableName sets the table name for GORM
func (Option) TableName() string {
	return "ussd_menu_options"
}

// ParsedAction returns the typed form of the option's action
func (o *Option) ParsedAction() Action {
	return ParseAction(o.Action)
}

// Match returns the option whose input exactly equals the given keystroke
// sequence. Matching is strict string equality: no trimming, no case
// folding, no numeric coercion ("01" does not match "1")
func (m *Menu) Match(input string) (*Option, bool) {
	for _, opt := range m.Options {
		if opt.Input == input {
			return opt, true
		}
	}
	return nil, false
}

// Service maps a dialed short code to a menu-tree entry point
type Service struct {
	ID        uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"column:deleted_at;index"`

	ServiceCode string `json:"service_code" gorm:"column:service_code;size:20;unique;not null"`
	Name        string `json:"name" gorm:"column:name;size:255;not null"`
	RootMenu    string `json:"root_menu" gorm:"column:root_menu;size:50;not null"`
	Language    string `json:"language" gorm:"column:language;size:8;not null;default:en"`
	Currency    string `json:"currency" gorm:"column:currency;size:8"`
	Active      bool   `json:"active" gorm:"column:active;default:true"`
}

// TableName sets the table name for GORM
func (Service) TableName() string {
	return "ussd_services"
}
