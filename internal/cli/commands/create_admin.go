package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/islandvows/islandvows/internal/config"
	"github.com/islandvows/islandvows/internal/gateway"
	"github.com/islandvows/islandvows/internal/models"
)

// NewCreateAdminCmd creates the create-admin command
func NewCreateAdminCmd() *cobra.Command {
	var role string

	cmd := &cobra.Command{
		Use:   "create-admin <email> <password>",
		Short: "Create a confirmed staff user",
		Long: `Create a confirmed auth user and its profile row.

Requires SUPABASE_SERVICE_ROLE_KEY. The password is set as given and the
email address is marked confirmed, so the user can sign in right away.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			return runCreateAdmin(cmd.Context(), cfg, args[0], args[1], role, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&role, "role", models.RoleAdmin, "Profile role (ADMIN or EDITOR)")

	return cmd
}

func runCreateAdmin(ctx context.Context, cfg *config.Config, email, password, role string, out io.Writer) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}
	role = strings.ToUpper(strings.TrimSpace(role))
	if role != models.RoleAdmin && role != models.RoleEditor {
		return fmt.Errorf("invalid role %q: must be %s or %s", role, models.RoleAdmin, models.RoleEditor)
	}

	if err := cfg.RequireServiceRoleKey(); err != nil {
		return err
	}

	client, err := gateway.New(gateway.Options{
		URL:     cfg.Supabase.URL,
		APIKey:  cfg.Supabase.ServiceRoleKey,
		Timeout: cfg.Supabase.Timeout,
	})
	if err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	user, err := client.Auth().AdminCreateUser(ctx, gateway.AdminUserParams{
		Email:        email,
		Password:     password,
		EmailConfirm: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create auth user: %w", err)
	}

	profile := models.UserProfile{
		ID:    user.ID,
		Email: user.Email,
		Role:  role,
	}
	if err := client.From(models.TableUsers).Insert(ctx, profile, nil); err != nil {
		// the auth user exists without a profile at this point
		return fmt.Errorf("auth user %s created but its profile was not: %w", user.ID, err)
	}

	fmt.Fprintln(out, "Admin user created successfully!")
	fmt.Fprintf(out, "Email: %s\n", user.Email)
	fmt.Fprintf(out, "Role:  %s\n", role)

	return nil
}
