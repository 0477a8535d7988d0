package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/tlogandesigns/site-visitor-dash/internal/accounts"
	"github.com/tlogandesigns/site-visitor-dash/internal/database/models"
	"github.com/tlogandesigns/site-visitor-dash/internal/leads"
	"golang.org/x/term"
)

func (c *cli) createAdmin(ctx context.Context, args []string) error {
	fs := newFlagSet("create-admin", c.out)
	username := fs.String("username", "", "login name (required)")
	email := fs.String("email", "", "contact email")
	roleName := fs.String("role", string(models.RoleAdmin), "admin or super_admin")
	password := fs.String("password", "", "password; prompted for when omitted")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(*username) == "" {
		return fmt.Errorf("%w: --username is required", errUsage)
	}
	role, ok := models.ParseRole(*roleName)
	if !ok || !role.IsAdmin() {
		return fmt.Errorf("%w: --role must be admin or super_admin", errUsage)
	}

	if *password == "" {
		pw, err := c.readPassword()
		if err != nil {
			return err
		}
		*password = pw
	}

	user, created, err := c.accounts.UpsertAdmin(ctx, *username, *password, *email, role)
	if err != nil {
		return err
	}

	verb := "updated"
	if created {
		verb = "created"
	}
	fmt.Fprintf(c.out, "%s %s %q (%s)\n", verb, user.Role, user.Username, user.ID)
	return nil
}

func (c *cli) assignSite(ctx context.Context, args []string) error {
	agent, site, err := c.agentSiteFlags(ctx, "assign-site", args)
	if err != nil {
		return err
	}

	if err := c.accounts.AssignSite(ctx, agent.ID, site); err != nil {
		return fmt.Errorf("assigning site: %w", err)
	}
	fmt.Fprintf(c.out, "assigned %q to %s\n", site, agent.Name)
	return nil
}

func (c *cli) unassignSite(ctx context.Context, args []string) error {
	agent, site, err := c.agentSiteFlags(ctx, "unassign-site", args)
	if err != nil {
		return err
	}

	removed, err := c.accounts.UnassignSite(ctx, agent.ID, site)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(c.out, "%s was not assigned to %q\n", agent.Name, site)
		return nil
	}
	fmt.Fprintf(c.out, "removed %q from %s\n", site, agent.Name)
	return nil
}

func (c *cli) agentSiteFlags(ctx context.Context, name string, args []string) (*models.Agent, string, error) {
	fs := newFlagSet(name, c.out)
	agentName := fs.String("agent", "", "agent name (required)")
	site := fs.String("site", "", "site name (required)")
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}

	if strings.TrimSpace(*agentName) == "" || strings.TrimSpace(*site) == "" {
		return nil, "", fmt.Errorf("%w: --agent and --site are required", errUsage)
	}

	agent, err := c.accounts.FindAgentByName(ctx, *agentName)
	if err != nil {
		if errors.Is(err, accounts.ErrAgentNotFound) {
			return nil, "", fmt.Errorf("no agent named %q", *agentName)
		}
		return nil, "", err
	}
	return agent, strings.TrimSpace(*site), nil
}

func (c *cli) listUnsynced(ctx context.Context, args []string) error {
	fs := newFlagSet("list-unsynced", c.out)
	limit := fs.Int("limit", 50, "maximum number of leads to show")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit < 1 {
		return fmt.Errorf("%w: --limit must be positive", errUsage)
	}

	rows, err := leads.ListUnsynced(ctx, c.db, *limit)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintln(c.out, "all leads are synced")
		return nil
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tSITE\tBUYER\tAGENT\tLAST ERROR")
	for _, l := range rows {
		agent := ""
		if l.CapturingAgent != nil {
			agent = l.CapturingAgent.Name
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, l.CreatedAt.Format("2006-01-02 15:04"), l.Site, l.BuyerName, agent, l.CRMSyncError)
	}
	return tw.Flush()
}

// promptPassword reads the password twice with echo disabled, or one line
// from stdin when it is not a terminal.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("reading password from stdin: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}

	fmt.Fprint(os.Stderr, "Confirm password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password confirmation: %w", err)
	}

	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
