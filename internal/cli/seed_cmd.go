package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/plandeck/plandeck/internal/db"
	"github.com/plandeck/plandeck/internal/domain"
	"github.com/plandeck/plandeck/internal/perm"
	"github.com/plandeck/plandeck/internal/repository"
)

// newSeedCmd bootstraps a tenant: a company, an all-permissions admin
// role and user, and a first project with an all-permissions membership.
// Every later operation goes through the permission-checked services;
// this is the one write path that cannot, because no actor exists yet.
func newSeedCmd(app *App) *cobra.Command {
	var companyName, adminEmail, projectName string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Bootstrap a company with an admin user and a first project",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now().UTC()

			company := &domain.Company{
				ID:        uuid.New().String(),
				Name:      companyName,
				CreatedAt: now,
			}
			companyRole := &domain.Role{
				ID:          uuid.New().String(),
				CompanyID:   company.ID,
				Name:        "Admin",
				Permissions: allKeys(perm.CompanyKeys()),
				CreatedAt:   now,
			}
			admin := &domain.CompanyUser{
				ID:          uuid.New().String(),
				CompanyID:   company.ID,
				Email:       adminEmail,
				DisplayName: "Admin",
				RoleID:      &companyRole.ID,
				IsActive:    true,
				CreatedAt:   now,
			}
			project := &domain.Project{
				ID:                    uuid.New().String(),
				CompanyID:             company.ID,
				Name:                  projectName,
				Status:                domain.ProjectActive,
				FlowsEnabled:          true,
				TestCasesEnabled:      true,
				TestPlanningEnabled:   true,
				ElementCaptureEnabled: true,
				CreatedAt:             now,
				UpdatedAt:             now,
			}
			projectRole := &domain.ProjectRole{
				ID:          uuid.New().String(),
				ProjectID:   project.ID,
				Name:        "Maintainer",
				Permissions: allKeys(perm.ProjectKeys()),
				CreatedAt:   now,
			}
			member := &domain.ProjectUser{
				ID:            uuid.New().String(),
				ProjectID:     project.ID,
				CompanyUserID: admin.ID,
				RoleID:        projectRole.ID,
				IsActive:      true,
			}

			err := app.UoW.WithinTx(cmd.Context(), func(ctx context.Context, tx db.DBTX) error {
				companies := repository.NewSQLiteCompanyRepo(tx)
				projects := repository.NewSQLiteProjectRepo(tx)
				if err := companies.Create(ctx, company); err != nil {
					return err
				}
				if err := companies.CreateRole(ctx, companyRole); err != nil {
					return err
				}
				if err := companies.CreateUser(ctx, admin); err != nil {
					return err
				}
				if err := projects.Create(ctx, project); err != nil {
					return err
				}
				if err := projects.CreateRole(ctx, projectRole); err != nil {
					return err
				}
				return projects.CreateMember(ctx, member)
			})
			if err != nil {
				return fmt.Errorf("seeding tenant: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "company  %s  %s\n", company.ID, company.Name)
			fmt.Fprintf(out, "admin    %s  %s\n", admin.ID, admin.Email)
			fmt.Fprintf(out, "project  %s  %s\n", project.ID, project.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&companyName, "company", "", "company name (required)")
	cmd.Flags().StringVar(&adminEmail, "email", "", "admin email (required)")
	cmd.Flags().StringVar(&projectName, "project", "First Project", "name of the initial project")
	_ = cmd.MarkFlagRequired("company")
	_ = cmd.MarkFlagRequired("email")

	return cmd
}

func allKeys(keys []string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}
