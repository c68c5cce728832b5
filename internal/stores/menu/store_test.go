package menu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		raw    string
		kind   ActionKind
		target string
	}{
		{"back", ActionBack, ""},
		{"exit", ActionExit, ""},
		{"main", ActionGoto, "main"},
		{"send_money_amount", ActionGoto, "send_money_amount"},
		// Reserved verbs are exact: near-misses are menu keys
		{"Back", ActionGoto, "Back"},
		{"exit ", ActionGoto, "exit "},
	}

	for _, tt := range tests {
		action := ParseAction(tt.raw)
		assert.Equal(t, tt.kind, action.Kind, "raw %q", tt.raw)
		assert.Equal(t, tt.target, action.Target, "raw %q", tt.raw)
	}
}

func TestMenuMatch(t *testing.T) {
	m := &Menu{
		Options: []*Option{
			{Input: "1", Label: "Send Money", Action: "send_money_amount"},
			{Input: "2", Label: "Check Balance", Action: "check_balance"},
		},
	}

	t.Run("exact match", func(t *testing.T) {
		opt, ok := m.Match("1")
		require.True(t, ok)
		assert.Equal(t, "Send Money", opt.Label)
	})

	t.Run("no coercion or trimming", func(t *testing.T) {
		for _, input := range []string{"01", " 1", "1 ", "3", ""} {
			_, ok := m.Match(input)
			assert.False(t, ok, "input %q should not match", input)
		}
	})
}

func TestInMemoryStoreActiveMenu(t *testing.T) {
	ctx := context.Background()

	t.Run("missing menu", func(t *testing.T) {
		store := NewInMemoryStore()
		_, err := store.ActiveMenu(ctx, "main", "en")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("inactive menus are invisible", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.SaveMenu(ctx, &Menu{
			MenuType: "main", Language: "en", Content: "Old", IsActive: false,
		}))

		_, err := store.ActiveMenu(ctx, "main", "en")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("default variant wins", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.SaveMenu(ctx, &Menu{
			MenuType: "main", Language: "en", Content: "Variant A", IsActive: true,
		}))
		require.NoError(t, store.SaveMenu(ctx, &Menu{
			MenuType: "main", Language: "en", Content: "Variant B", IsActive: true, IsDefault: true,
		}))

		m, err := store.ActiveMenu(ctx, "main", "en")
		require.NoError(t, err)
		assert.Equal(t, "Variant B", m.Content)
	})

	t.Run("lowest id breaks ties without a default", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.SaveMenu(ctx, &Menu{
			MenuType: "main", Language: "en", Content: "First", IsActive: true,
		}))
		require.NoError(t, store.SaveMenu(ctx, &Menu{
			MenuType: "main", Language: "en", Content: "Second", IsActive: true,
		}))

		m, err := store.ActiveMenu(ctx, "main", "en")
		require.NoError(t, err)
		assert.Equal(t, "First", m.Content)
	})

	t.Run("language selects the variant", func(t *testing.T) {
		store := NewInMemoryStore()
		require.NoError(t, store.SaveMenu(ctx, &Menu{
			MenuType: "main", Language: "en", Content: "Welcome", IsActive: true,
		}))
		require.NoError(t, store.SaveMenu(ctx, &Menu{
			MenuType: "main", Language: "sw", Content: "Karibu", IsActive: true,
		}))

		m, err := store.ActiveMenu(ctx, "main", "sw")
		require.NoError(t, err)
		assert.Equal(t, "Karibu", m.Content)
	})
}

func TestInMemoryStoreCopySemantics(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	saved := &Menu{
		MenuType: "main", Language: "en", Content: "Welcome", IsActive: true,
		Options: []*Option{
			{Input: "1", Label: "Send Money", Action: "send_money_amount"},
		},
	}
	require.NoError(t, store.SaveMenu(ctx, saved))

	t.Run("post-save mutation does not alias stored state", func(t *testing.T) {
		saved.Content = "mutated"
		saved.Options[0].Action = "hijacked"

		m, err := store.ActiveMenu(ctx, "main", "en")
		require.NoError(t, err)
		assert.Equal(t, "Welcome", m.Content)
		assert.Equal(t, "send_money_amount", m.Options[0].Action)
	})

	t.Run("lookup returns a private copy", func(t *testing.T) {
		m, err := store.ActiveMenu(ctx, "main", "en")
		require.NoError(t, err)

		m.Content = "mutated"
		m.Options[0].Input = "9"

		again, err := store.ActiveMenu(ctx, "main", "en")
		require.NoError(t, err)
		assert.Equal(t, "Welcome", again.Content)
		assert.Equal(t, "1", again.Options[0].Input)
	})

	t.Run("services get the same treatment", func(t *testing.T) {
		svc := &Service{ServiceCode: "*384#", Name: "SakoPay", RootMenu: "main", Active: true}
		require.NoError(t, store.SaveService(ctx, svc))

		svc.RootMenu = "mutated"

		got, err := store.ServiceByCode(ctx, "*384#")
		require.NoError(t, err)
		assert.Equal(t, "main", got.RootMenu)
	})
}

func TestSaveMenuValidation(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	t.Run("duplicate option inputs rejected", func(t *testing.T) {
		err := store.SaveMenu(ctx, &Menu{
			MenuType: "main", Language: "en", Content: "Welcome", IsActive: true,
			Options: []*Option{
				{Input: "1", Label: "A", Action: "a"},
				{Input: "1", Label: "B", Action: "b"},
			},
		})
		assert.Error(t, err)
	})

	t.Run("capture menu requires next_menu", func(t *testing.T) {
		err := store.SaveMenu(ctx, &Menu{
			MenuType: "amount", Language: "en", Content: "Enter amount:", IsActive: true,
			CaptureKey: "amount",
		})
		assert.Error(t, err)
	})

	t.Run("missing key fields rejected", func(t *testing.T) {
		assert.Error(t, store.SaveMenu(ctx, &Menu{Language: "en", Content: "x"}))
		assert.Error(t, store.SaveMenu(ctx, &Menu{MenuType: "main", Content: "x"}))
	})
}

func TestInMemoryStoreServices(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveService(ctx, &Service{
		ServiceCode: "*384#",
		Name:        "SakoPay",
		RootMenu:    "main",
		Language:    "en",
		Currency:    "KES",
		Active:      true,
	}))

	t.Run("lookup by code", func(t *testing.T) {
		svc, err := store.ServiceByCode(ctx, "*384#")
		require.NoError(t, err)
		assert.Equal(t, "main", svc.RootMenu)
		assert.Equal(t, "KES", svc.Currency)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := store.ServiceByCode(ctx, "*999#")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("inactive service is invisible", func(t *testing.T) {
		require.NoError(t, store.SaveService(ctx, &Service{
			ServiceCode: "*500#", Name: "Old", RootMenu: "main", Active: false,
		}))

		_, err := store.ServiceByCode(ctx, "*500#")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		assert.Error(t, store.SaveService(ctx, &Service{Name: "NoCode", RootMenu: "main"}))
		assert.Error(t, store.SaveService(ctx, &Service{ServiceCode: "*600#", Name: "NoRoot"}))
	})
}

func TestListMenus(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SaveMenu(ctx, &Menu{MenuType: "b", Language: "en", Content: "B", IsActive: true}))
	require.NoError(t, store.SaveMenu(ctx, &Menu{MenuType: "a", Language: "en", Content: "A", IsActive: true}))

	menus, err := store.ListMenus(ctx)
	require.NoError(t, err)
	require.Len(t, menus, 2)
	assert.Equal(t, "b", menus[0].MenuType, "ordered by id")
}
