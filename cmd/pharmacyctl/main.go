package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/pharmacy/internal/app"
	"github.com/Skotchmaster/pharmacy/internal/config"
	"github.com/Skotchmaster/pharmacy/internal/models"
	"github.com/Skotchmaster/pharmacy/internal/transport"
	"github.com/Skotchmaster/pharmacy/pkg/logging"
)

var envFile string

func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	envErr := config.LoadDotEnv(envFile)
	cfg := config.Load()
	log := logging.New(cfg.LogLevel).With("service", "pharmacyctl")
	if envErr != nil {
		log.Warn("dotenv_skipped", "error", envErr)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()
	ctx = logging.IntoContext(ctx, log)

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func createSuperAdminCmd() *cobra.Command {
	var name, email, password string
	cmd := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create the first account; refused once any user exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				password = os.Getenv("SUPERADMIN_PASSWORD")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				u, err := a.Auth.CreateSuperAdmin(ctx, name, email, password)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created superadmin %d <%s>\n", u.ID, u.Email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Super Admin", "display name")
	cmd.Flags().StringVar(&email, "email", "", "login e-mail")
	cmd.Flags().StringVar(&password, "password", "", "password (default $SUPERADMIN_PASSWORD)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

var seedNames = []string{
	"Paracetamol", "Ibuprofen", "Amoxicillin", "Cetirizine", "Omeprazole",
	"Metformin", "Aspirin", "Loratadine", "Azithromycin", "Vitamin C",
}

var seedCompanies = []string{"Acme Pharma", "Bayer", "Pfizer", "Novartis", "Sanofi"}

func seedMedicinesCmd() *cobra.Command {
	var count int
	var categoryName string
	cmd := &cobra.Command{
		Use:   "seed-medicines",
		Short: "Insert random medicines for local development",
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return fmt.Errorf("--count must be positive")
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				cat, err := ensureCategory(ctx, a, categoryName)
				if err != nil {
					return err
				}
				expiry := time.Now().UTC().AddDate(1, 0, 0).Format("2006-01-02")
				for i := 0; i < count; i++ {
					cost := float64(rand.IntN(50) + 10)
					sale := cost + float64(rand.IntN(20)+1)
					qty := rand.IntN(100)
					_, err := a.Inventory.CreateMedicine(ctx, 0, transport.CreateMedicineRequest{
						Name:       fmt.Sprintf("%s %d", seedNames[i%len(seedNames)], i+1),
						Company:    seedCompanies[rand.IntN(len(seedCompanies))],
						Qty:        &qty,
						CostPrice:  &cost,
						SalePrice:  &sale,
						ExpiryDate: &expiry,
						CategoryID: &cat.ID,
					})
					if err != nil {
						return fmt.Errorf("medicine %d: %w", i+1, err)
					}
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded %d medicines into category %q\n", count, cat.Name)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&count, "count", 50, "number of medicines")
	cmd.Flags().StringVar(&categoryName, "category", "General", "category to create for the seeded rows")
	return cmd
}

func ensureCategory(ctx context.Context, a *app.App, name string) (*models.Category, error) {
	cats, err := a.Inventory.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cats {
		if cats[i].Name == name {
			return &cats[i], nil
		}
	}
	return a.Inventory.CreateCategory(ctx, 0, transport.CategoryRequest{Name: name})
}

func sweepTokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-tokens",
		Short: "Delete refresh tokens past their expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Auth.SweepTokens(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "purged %d refresh tokens\n", n)
				return nil
			})
		},
	}
}

func revokeSessionsCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "revoke-sessions",
		Short: "Revoke every refresh token of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				n, err := a.Auth.RevokeSessions(ctx, email)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions of %s\n", n, email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user e-mail")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func deleteUserCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "delete-user",
		Short: "Delete a user account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if err := a.Auth.DeleteUser(ctx, 0, email); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", email)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "user e-mail")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pharmacyctl",
		Short:         "Administrative tasks for the pharmacy backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file")
	root.AddCommand(
		createSuperAdminCmd(),
		seedMedicinesCmd(),
		sweepTokensCmd(),
		revokeSessionsCmd(),
		deleteUserCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
