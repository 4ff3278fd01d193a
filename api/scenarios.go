/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:

	Populates the directory (users, projects, role grants) and optionally a
	week of approved time so the cost endpoints have something to price.
	Time is logged and approved through the TimeLedger, so scenarios
	exercise the same rules as real clients.

AVAILABLE SCENARIOS:

	team:       Users with rates, one project, stock roles
	team-week:  team + approved time for the five weekdays ending today

HOW SCENARIOS WORK:
 1. Upsert users, projects and role grants in the directory
 2. Log time as each developer
 3. Approve it as the project manager

	Loading twice is harmless: existing entries surface as duplicates and
	are skipped.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "team-week"}

NOTE:

	Only mounted when server.scenarios is enabled. Do not enable in
	production: the endpoint writes directory data without permission checks.

SEE ALSO:
  - server.go: Conditional mounting
  - store/sqlite/directory.go: DirectoryWriter implementation
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/cost-ledger/generic"
	"github.com/warp/cost-ledger/timesheet"
)

// DirectoryWriter is the write side of the user/project directory.
type DirectoryWriter interface {
	SaveUser(ctx context.Context, u generic.User) error
	SaveProject(ctx context.Context, p generic.Project) error
	GrantRole(ctx context.Context, userID generic.UserID, role string) error
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "team",
		Name:        "Team",
		Description: "Two developers with hourly rates, a manager, finance and an admin on one project",
	},
	{
		ID:          "team-week",
		Name:        "Team Week",
		Description: "Team plus approved time for the five weekdays ending today",
	},
}

const (
	demoProject = generic.ProjectID("p-apollo")
	demoManager = generic.UserID("u-pm")
)

var demoUsers = []struct {
	user generic.User
	role string
}{
	{generic.User{ID: "u-ann", Name: "Ann", Department: "engineering", HourlyRate: rate("100.00")}, generic.RoleDeveloper},
	{generic.User{ID: "u-bob", Name: "Bob", Department: "engineering", HourlyRate: rate("150.00")}, generic.RoleDeveloper},
	{generic.User{ID: demoManager, Name: "Pat", Department: "engineering", HourlyRate: rate("180.00")}, generic.RoleProjectManager},
	{generic.User{ID: "u-fin", Name: "Fay", Department: "finance", MonthlySalary: rate("9000.00"), CostMethod: generic.CostMethodMonthly}, generic.RoleFinance},
	{generic.User{ID: "u-admin", Name: "Root", Department: "operations"}, generic.RoleAdmin},
}

func rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(generic.MustParseDecimal(s))
}

// =============================================================================
// HANDLERS
// =============================================================================

func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}

	var err error
	switch req.ScenarioID {
	case "team":
		err = h.loadTeamScenario(r.Context())
	case "team-week":
		err = h.loadTeamWeekScenario(r.Context())
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "Unknown scenario",
			Code:  "unknown_scenario",
		})
		return
	}
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.Logger.Info("scenario loaded", zap.String("scenario", req.ScenarioID))
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario_id": req.ScenarioID})
}

// =============================================================================
// LOADERS
// =============================================================================

func (h *Handler) loadTeamScenario(ctx context.Context) error {
	if h.Directory == nil {
		return errors.New("no directory writer configured")
	}

	members := make([]generic.UserID, 0, len(demoUsers))
	for _, du := range demoUsers {
		if err := h.Directory.SaveUser(ctx, du.user); err != nil {
			return fmt.Errorf("save user %s: %w", du.user.ID, err)
		}
		if err := h.Directory.GrantRole(ctx, du.user.ID, du.role); err != nil {
			return fmt.Errorf("grant %s: %w", du.user.ID, err)
		}
		if du.role == generic.RoleDeveloper || du.role == generic.RoleProjectManager {
			members = append(members, du.user.ID)
		}
	}
	return h.Directory.SaveProject(ctx, generic.Project{
		ID:      demoProject,
		Name:    "Apollo",
		Budget:  rate("50000.00"),
		Members: members,
	})
}

func (h *Handler) loadTeamWeekScenario(ctx context.Context) error {
	if err := h.loadTeamScenario(ctx); err != nil {
		return err
	}

	manager := generic.Actor{ID: demoManager}
	day := h.Times.Now.Today()
	for logged := 0; logged < 5; day = day.AddDays(-1) {
		if wd := day.Time().Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		logged++

		for _, du := range demoUsers {
			if du.role != generic.RoleDeveloper {
				continue
			}
			rec, err := h.Times.Create(ctx, generic.Actor{ID: du.user.ID}, timesheet.CreateRecordInput{
				ProjectID:   demoProject,
				WorkDate:    day,
				StartTime:   generic.NewClock(9, 0),
				EndTime:     generic.NewClock(17, 30),
				WorkContent: "Sprint work",
			})
			if errors.Is(err, generic.ErrDuplicateEntry) {
				continue
			}
			if err != nil {
				return err
			}
			if _, err := h.Times.Decide(ctx, manager, rec.ID, generic.ActionApprove, "ok"); err != nil {
				return err
			}
		}
	}
	return nil
}
