package menu

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// ErrNotFound is returned when no active menu or service matches a lookup
var ErrNotFound = errors.New("not found")

// Store interface defines methods for menu and service storage. Lookups are
// the interpreter-facing read path; the save/delete methods back the
// authoring endpoints
type Store interface {
	ActiveMenu(ctx context.Context, menuType, language string) (*Menu, error)
	ServiceByCode(ctx context.Context, code string) (*Service, error)

	SaveMenu(ctx context.Context, m *Menu) error
	DeleteMenu(ctx context.Context, id uint) error
	ListMenus(ctx context.Context) ([]*Menu, error)
	SaveService(ctx context.Context, svc *Service) error
	ListServices(ctx context.Context) ([]*Service, error)
}

// validateMenu enforces option-input uniqueness within a menu
func validateMenu(m *Menu) error {
	if m.MenuType == "" {
		return fmt.Errorf("menu_type cannot be empty")
	}
	if m.Language == "" {
		return fmt.Errorf("language cannot be empty")
	}
	if m.CaptureKey != "" && m.NextMenu == "" {
		return fmt.Errorf("menu %q captures input but has no next_menu", m.MenuType)
	}

	seen := make(map[string]bool, len(m.Options))
	for _, opt := range m.Options {
		if opt.Input == "" {
			return fmt.Errorf("option input cannot be empty")
		}
		if seen[opt.Input] {
			return fmt.Errorf("duplicate option input %q in menu %q", opt.Input, m.MenuType)
		}
		seen[opt.Input] = true
	}
	return nil
}

// MySqlStore handles menu persistence using GORM
type MySqlStore struct {
	db *gorm.DB
}

// NewMySqlStore creates a new menu store with GORM connection
func NewMySqlStore(databaseURL string) (*MySqlStore, error) {
	db, err := gorm.Open(mysql.Open(databaseURL), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &MySqlStore{db: db}

	// Auto-migrate tables
	if err := db.AutoMigrate(&Menu{}, &Option{}, &Service{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}

	return store, nil
}

// NewMySqlStoreFromDB wraps an existing GORM connection (for sharing one
// pool across stores)
func NewMySqlStoreFromDB(db *gorm.DB) (*MySqlStore, error) {
	if err := db.AutoMigrate(&Menu{}, &Option{}, &Service{}); err != nil {
		return nil, fmt.Errorf("failed to migrate tables: %w", err)
	}
	return &MySqlStore{db: db}, nil
}

// ActiveMenu resolves the active menu for a (menu_type, language) pair.
// The default variant wins; between non-default candidates the lowest id
// wins so resolution stays deterministic
func (s *MySqlStore) ActiveMenu(ctx context.Context, menuType, language string) (*Menu, error) {
	var menus []*Menu
	result := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("id ASC")
		}).
		Where("menu_type = ? AND language = ? AND is_active = ?", menuType, language, true).
		Order("is_default DESC").Order("id ASC").
		Limit(1).
		Find(&menus)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to resolve menu: %w", result.Error)
	}
	if len(menus) == 0 {
		return nil, ErrNotFound
	}

	return menus[0], nil
}

// ServiceByCode looks up an active service by its dialed short code
func (s *MySqlStore) ServiceByCode(ctx context.Context, code string) (*Service, error) {
	var svc Service
	result := s.db.WithContext(ctx).First(&svc, "service_code = ? AND active = ?", code, true)

	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get service: %w", result.Error)
	}

	return &svc, nil
}

// SaveMenu creates or updates a menu with its options
func (s *MySqlStore) SaveMenu(ctx context.Context, m *Menu) error {
	if err := validateMenu(m); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if m.ID != 0 {
			// Replace options wholesale on update
			if err := tx.Where("menu_id = ?", m.ID).Delete(&Option{}).Error; err != nil {
				return fmt.Errorf("failed to clear options: %w", err)
			}
		}

		if err := tx.Save(m).Error; err != nil {
			return fmt.Errorf("failed to save menu: %w", err)
		}
		return nil
	})
}

// DeleteMenu removes a menu and its options
func (s *MySqlStore) DeleteMenu(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("menu_id = ?", id).Delete(&Option{}).Error; err != nil {
			return fmt.Errorf("failed to delete options: %w", err)
		}
		if err := tx.Delete(&Menu{}, id).Error; err != nil {
			return fmt.Errorf("failed to delete menu: %w", err)
		}
		return nil
	})
}

// ListMenus returns all menus with their options
func (s *MySqlStore) ListMenus(ctx context.Context) ([]*Menu, error) {
	var menus []*Menu
	result := s.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC").Order("id ASC")
		}).
		Order("menu_type ASC").Order("language ASC").Order("id ASC").
		Find(&menus)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list menus: %w", result.Error)
	}
	return menus, nil
}

// SaveService creates or updates a service directory entry
func (s *MySqlStore) SaveService(ctx context.Context, svc *Service) error {
	if svc.ServiceCode == "" {
		return fmt.Errorf("service_code cannot be empty")
	}
	if svc.RootMenu == "" {
		return fmt.Errorf("root_menu cannot be empty")
	}

	if err := s.db.WithContext(ctx).Save(svc).Error; err != nil {
		return fmt.Errorf("failed to save service: %w", err)
	}
	return nil
}

// ListServices returns all services
func (s *MySqlStore) ListServices(ctx context.Context) ([]*Service, error) {
	var services []*Service
	result := s.db.WithContext(ctx).Order("service_code ASC").Find(&services)

	if result.Error != nil {
		return nil, fmt.Errorf("failed to list services: %w", result.Error)
	}
	return services, nil
}

// InMemoryStore is an in-memory menu store (for tests and the simulator).
// It stores and returns deep copies so callers never alias stored state,
// matching the MySQL store's row round-trip semantics
type InMemoryStore struct {
	menus    map[uint]*Menu
	services map[string]*Service
	nextID   uint
	mu       sync.RWMutex
}

func cloneMenu(m *Menu) *Menu {
	out := *m
	out.Options = make([]*Option, len(m.Options))
	for i, opt := range m.Options {
		o := *opt
		out.Options[i] = &o
	}
	return &out
}

// NewInMemoryStore creates a new in-memory menu store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		menus:    make(map[uint]*Menu),
		services: make(map[string]*Service),
		nextID:   1,
	}
}

// ActiveMenu resolves the active menu for a (menu_type, language) pair
// with the same default-then-lowest-id precedence as the MySQL store
func (s *InMemoryStore) ActiveMenu(ctx context.Context, menuType, language string) (*Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []*Menu
	for _, m := range s.menus {
		if m.MenuType == menuType && m.Language == language && m.IsActive {
			candidates = append(candidates, m)
		}
	}
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].IsDefault != candidates[j].IsDefault {
			return candidates[i].IsDefault
		}
		return candidates[i].ID < candidates[j].ID
	})

	return cloneMenu(candidates[0]), nil
}

// ServiceByCode looks up an active service by its dialed short code
func (s *InMemoryStore) ServiceByCode(ctx context.Context, code string) (*Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, exists := s.services[code]
	if !exists || !svc.Active {
		return nil, ErrNotFound
	}

	out := *svc
	return &out, nil
}

// SaveMenu creates or updates a menu with its options
func (s *InMemoryStore) SaveMenu(ctx context.Context, m *Menu) error {
	if err := validateMenu(m); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if m.ID == 0 {
		m.ID = s.nextID
		s.nextID++
	} else if m.ID >= s.nextID {
		s.nextID = m.ID + 1
	}

	// Keep options in declared order
	for i, opt := range m.Options {
		opt.MenuID = m.ID
		if opt.Position == 0 {
			opt.Position = i + 1
		}
	}

	s.menus[m.ID] = cloneMenu(m)
	return nil
}

// DeleteMenu removes a menu and its options
func (s *InMemoryStore) DeleteMenu(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.menus[id]; !exists {
		return ErrNotFound
	}
	delete(s.menus, id)
	return nil
}

// ListMenus returns all menus ordered by id
func (s *InMemoryStore) ListMenus(ctx context.Context) ([]*Menu, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	menus := make([]*Menu, 0, len(s.menus))
	for _, m := range s.menus {
		menus = append(menus, cloneMenu(m))
	}
	sort.Slice(menus, func(i, j int) bool { return menus[i].ID < menus[j].ID })

	return menus, nil
}

// SaveService creates or updates a service directory entry
func (s *InMemoryStore) SaveService(ctx context.Context, svc *Service) error {
	if svc.ServiceCode == "" {
		return fmt.Errorf("service_code cannot be empty")
	}
	if svc.RootMenu == "" {
		return fmt.Errorf("root_menu cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if svc.ID == 0 {
		svc.ID = s.nextID
		s.nextID++
	}

	stored := *svc
	s.services[svc.ServiceCode] = &stored
	return nil
}

// ListServices returns all services ordered by code
func (s *InMemoryStore) ListServices(ctx context.Context) ([]*Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]*Service, 0, len(s.services))
	for _, svc := range s.services {
		out := *svc
		services = append(services, &out)
	}
	sort.Slice(services, func(i, j int) bool { return services[i].ServiceCode < services[j].ServiceCode })

	return services, nil
}
