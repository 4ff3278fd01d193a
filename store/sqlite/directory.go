package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/warp/cost-ledger/generic"
)

// =============================================================================
// DIRECTORY (generic.UserDirectory, ProjectDirectory, Authorizer)
// =============================================================================
//
// The ledger only reads these tables. The Save*/Grant* methods exist for
// provisioning, seeding and tests.

// seedRoles installs generic.DefaultRoles. Existing grants are kept.
func (s *Store) seedRoles(ctx context.Context) error {
	return s.withTx(ctx, func(q queries) error {
		for role, perms := range generic.DefaultRoles {
			for _, p := range perms {
				_, err := q.db.ExecContext(ctx,
					"INSERT OR IGNORE INTO role_permissions (role, permission) VALUES (?, ?)", role, string(p))
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// SaveUser inserts or replaces a user.
func (s *Store) SaveUser(ctx context.Context, u generic.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	method := u.Method()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, department, hourly_rate, monthly_salary, cost_method, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			department = excluded.department,
			hourly_rate = excluded.hourly_rate,
			monthly_salary = excluded.monthly_salary,
			cost_method = excluded.cost_method`,
		u.ID, u.Name, u.Department, nullDecimal(u.HourlyRate), nullDecimal(u.MonthlySalary),
		string(method), formatTime(time.Now()),
	)
	return generic.StorageError("save user", err)
}

func (s *Store) GetUser(ctx context.Context, id generic.UserID) (generic.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT id, name, department, hourly_rate, monthly_salary, cost_method FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err != nil {
		return generic.User{}, notFound(err, generic.ErrUserNotFound, "user %s not found", id)
	}
	return u, nil
}

// FindUsers returns users ordered by ID.
func (s *Store) FindUsers(ctx context.Context, f generic.UserFilter) ([]generic.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var w where
	w.addIf(f.Department != "", "department = ?", f.Department)
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, department, hourly_rate, monthly_salary, cost_method FROM users"+w.String()+" ORDER BY id",
		w.args...)
	if err != nil {
		return nil, generic.StorageError("find users", err)
	}
	defer rows.Close()

	var out []generic.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, generic.StorageError("scan user", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func scanUser(row scanner) (generic.User, error) {
	var u generic.User
	var rate, salary sql.NullString
	var method string
	if err := row.Scan(&u.ID, &u.Name, &u.Department, &rate, &salary, &method); err != nil {
		return u, err
	}
	u.HourlyRate = parseNullDecimal(rate)
	u.MonthlySalary = parseNullDecimal(salary)
	u.CostMethod = generic.CostMethod(method)
	return u, nil
}

// SaveProject inserts or replaces a project and activates its listed members.
func (s *Store) SaveProject(ctx context.Context, p generic.Project) error {
	return s.withTx(ctx, func(q queries) error {
		now := formatTime(time.Now())
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO projects (id, name, budget, created_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name, budget = excluded.budget`,
			p.ID, p.Name, nullDecimal(p.Budget), now,
		)
		if err != nil {
			return generic.StorageError("save project", err)
		}
		for _, m := range p.Members {
			if err := q.setMember(ctx, p.ID, m, true, now); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetMember adds userID to the project or changes its active flag.
func (s *Store) SetMember(ctx context.Context, projectID generic.ProjectID, userID generic.UserID, active bool) error {
	return s.withTx(ctx, func(q queries) error {
		return q.setMember(ctx, projectID, userID, active, formatTime(time.Now()))
	})
}

func (q queries) setMember(ctx context.Context, projectID generic.ProjectID, userID generic.UserID, active bool, now string) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, is_active, joined_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(project_id, user_id) DO UPDATE SET is_active = excluded.is_active`,
		projectID, userID, active, now,
	)
	return generic.StorageError("set project member", err)
}

func (s *Store) GetProject(ctx context.Context, id generic.ProjectID) (generic.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p generic.Project
	var budget sql.NullString
	err := s.db.QueryRowContext(ctx, "SELECT id, name, budget FROM projects WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &budget)
	if err != nil {
		return generic.Project{}, notFound(err, generic.ErrProjectNotFound, "project %s not found", id)
	}
	p.Budget = parseNullDecimal(budget)

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id FROM project_members WHERE project_id = ? AND is_active = 1 ORDER BY user_id", id)
	if err != nil {
		return generic.Project{}, generic.StorageError("list project members", err)
	}
	defer rows.Close()
	for rows.Next() {
		var m generic.UserID
		if err := rows.Scan(&m); err != nil {
			return generic.Project{}, generic.StorageError("scan project member", err)
		}
		p.Members = append(p.Members, m)
	}
	return p, rows.Err()
}

func (s *Store) IsMember(ctx context.Context, projectID generic.ProjectID, userID generic.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM project_members WHERE project_id = ? AND user_id = ? AND is_active = 1",
		projectID, userID,
	).Scan(&n)
	if err != nil {
		return false, generic.StorageError("check membership", err)
	}
	return n > 0, nil
}

// =============================================================================
// ROLES
// =============================================================================

func (s *Store) GrantRole(ctx context.Context, userID generic.UserID, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO user_roles (user_id, role) VALUES (?, ?)", userID, role)
	return generic.StorageError("grant role", err)
}

func (s *Store) Check(ctx context.Context, actor generic.Actor, perm generic.Permission) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM user_roles ur
		JOIN role_permissions rp ON rp.role = ur.role
		WHERE ur.user_id = ? AND rp.permission = ?`,
		actor.ID, string(perm),
	).Scan(&n)
	if err != nil {
		return false, generic.StorageError("check permission", err)
	}
	return n > 0, nil
}

func (s *Store) HasRole(ctx context.Context, actor generic.Actor, role string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM user_roles WHERE user_id = ? AND role = ?", actor.ID, role,
	).Scan(&n)
	if err != nil {
		return false, generic.StorageError("check role", err)
	}
	return n > 0, nil
}
