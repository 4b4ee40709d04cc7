package auth

import "testing"

func TestParsePermission(t *testing.T) {
	tests := []struct {
		in      string
		want    Permission
		wantErr bool
	}{
		{"roles.editar", PermRolesEditar, false},
		{"ventas.ver", PermVentasVer, false},
		{" dashboard.ver ", PermDashboardVer, false},
		{"configuracion.importar", "configuracion.importar", false},
		{"roles", "", true},
		{"roles.", "", true},
		{"roles.borrar", "", true},
		{"inventario.ver", "", true},
		{"", "", true},
		{"roles:editar", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePermission(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePermission(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParsePermission(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParsePermissions_SplitsUnknownAndDedupes(t *testing.T) {
	valid, unknown := ParsePermissions([]string{"ventas.ver", "ventas.ver", "nope", "roles.crear"})
	if len(valid) != 2 || valid[0] != PermVentasVer || valid[1] != PermRolesCrear {
		t.Errorf("valid = %v", valid)
	}
	if len(unknown) != 1 || unknown[0] != "nope" {
		t.Errorf("unknown = %v", unknown)
	}
}

func TestPermission_Parts(t *testing.T) {
	if PermRolesEditar.Module() != ModuleRoles {
		t.Errorf("Module() = %q", PermRolesEditar.Module())
	}
	if PermRolesEditar.Action() != ActionEditar {
		t.Errorf("Action() = %q", PermRolesEditar.Action())
	}
}

func TestAllPermissions_CoverCatalog(t *testing.T) {
	all := AllPermissions()
	if want := len(AllModules()) * len(AllActions()); len(all) != want {
		t.Fatalf("len(AllPermissions()) = %d, want %d", len(all), want)
	}
	for _, p := range all {
		if _, err := ParsePermission(string(p)); err != nil {
			t.Errorf("AllPermissions() contains unparsable %q", p)
		}
	}
	// Every exported constant must be in the catalog.
	for _, p := range []Permission{PermDashboardVer, PermUsuariosEliminar, PermAuditoriaExportar, PermConfiguracionEditar, PermVentasAprobar} {
		if _, err := ParsePermission(string(p)); err != nil {
			t.Errorf("constant %q not in catalog: %v", p, err)
		}
	}
}

func TestIsPredefinedRole(t *testing.T) {
	for _, name := range []string{"administrador", "Supervisor", " vendedor "} {
		if !IsPredefinedRole(name) {
			t.Errorf("IsPredefinedRole(%q) = false", name)
		}
	}
	for _, name := range []string{"Editor", "", "admin"} {
		if IsPredefinedRole(name) {
			t.Errorf("IsPredefinedRole(%q) = true", name)
		}
	}
}

func TestNewCatalog(t *testing.T) {
	t.Run("skips unknown permission", func(t *testing.T) {
		c, err := NewCatalog([]CatalogEntry{
			{ID: 1, Permission: "inventario.ver"},
			{ID: 2, Permission: PermVentasVer},
			{ID: 3, Permission: "ventas"},
		})
		if err != nil {
			t.Fatalf("NewCatalog() error: %v", err)
		}
		if c.Len() != 1 || !c.Contains(PermVentasVer) {
			t.Errorf("catalog = %v, want only %s", c.entries, PermVentasVer)
		}
	})
	t.Run("rejects duplicates", func(t *testing.T) {
		_, err := NewCatalog([]CatalogEntry{{ID: 1, Permission: PermVentasVer}, {ID: 2, Permission: PermVentasVer}})
		if err == nil {
			t.Error("expected error for duplicate permission")
		}
	})
}

func TestCatalog_GroupedAndValidate(t *testing.T) {
	c, err := NewCatalog([]CatalogEntry{
		{ID: 3, Permission: PermVentasEditar},
		{ID: 1, Permission: PermRolesVer},
		{ID: 2, Permission: PermVentasVer},
		{ID: 4, Permission: PermDashboardVer},
	})
	if err != nil {
		t.Fatalf("NewCatalog() error: %v", err)
	}
	if c.Len() != 4 {
		t.Errorf("Len() = %d", c.Len())
	}

	groups := c.Grouped()
	if len(groups) != 3 {
		t.Fatalf("Grouped() len = %d, want 3", len(groups))
	}
	if groups[0].Module != ModuleDashboard || groups[1].Module != ModuleRoles || groups[2].Module != ModuleVentas {
		t.Errorf("group order = %s, %s, %s", groups[0].Module, groups[1].Module, groups[2].Module)
	}
	if v := groups[2].Entries; v[0].Permission != PermVentasVer || v[1].Permission != PermVentasEditar {
		t.Errorf("ventas actions out of order: %v", v)
	}

	if _, err := c.Validate([]string{"ventas.ver", "roles.ver"}); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	if _, err := c.Validate([]string{"clientes.ver"}); err == nil {
		t.Error("Validate() expected error for permission not offered by server")
	}
	if e, ok := c.Lookup(PermRolesVer); !ok || e.ID != 1 {
		t.Errorf("Lookup() = %+v, %v", e, ok)
	}
}
