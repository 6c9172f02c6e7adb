package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/jrsteele09/go-crm-client/account"
	"github.com/jrsteele09/go-crm-client/apiclient"
	"github.com/jrsteele09/go-crm-client/authz"
	"github.com/jrsteele09/go-crm-client/customers"
	"github.com/jrsteele09/go-crm-client/dashboard"
	"github.com/jrsteele09/go-crm-client/internal/utils"
	"github.com/jrsteele09/go-crm-client/leads"
	"github.com/jrsteele09/go-crm-client/listview"
	"github.com/jrsteele09/go-crm-client/session"
	"github.com/jrsteele09/go-crm-client/tasks"
)

type runtime struct {
	log      zerolog.Logger
	store    session.Store
	api      *apiclient.Client
	policy   *authz.Policy
	accounts *account.Service
}

func (rt *runtime) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case "login":
		return rt.login(ctx, args)
	case "logout":
		return rt.accounts.Logout()
	case "register":
		return rt.register(ctx, args)
	case "whoami":
		return rt.whoami()
	case "dashboard":
		return rt.dashboard(ctx)
	case "customers":
		return rt.customers(ctx, args)
	case "leads":
		return rt.leads(ctx, args)
	case "tasks":
		return rt.tasks(ctx, args)
	}
	return errors.Errorf("unknown command %q", command)
}

// onUnauthorized is wired into every controller: an expired session is torn
// down immediately and the user is pointed back at login.
func (rt *runtime) onUnauthorized() {
	if err := rt.accounts.Logout(); err != nil {
		rt.log.Error().Err(err).Msg("failed to clear session")
	}
	fmt.Fprintln(os.Stderr, "Session expired. Please run `crm login` again.")
}

func (rt *runtime) login(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("login", pflag.ContinueOnError)
	username := flags.String("username", "", "username")
	password := flags.String("password", "", "password")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if err := rt.accounts.Login(ctx, *username, *password); err != nil {
		return err
	}
	fmt.Printf("Logged in as %s\n", rt.store.Username())
	return nil
}

func (rt *runtime) register(ctx context.Context, args []string) error {
	flags := pflag.NewFlagSet("register", pflag.ContinueOnError)
	username := flags.String("username", "", "username")
	email := flags.String("email", "", "email address")
	password := flags.String("password", "", "password")
	confirm := flags.String("confirm", "", "password confirmation")
	admin := flags.Bool("admin", false, "request the admin role")
	if err := flags.Parse(args); err != nil {
		return err
	}
	form := account.Registration{
		Username:        *username,
		Email:           *email,
		Password:        *password,
		ConfirmPassword: *confirm,
		IsAdmin:         *admin,
	}
	if err := rt.accounts.Register(ctx, form); err != nil {
		return err
	}
	fmt.Println("Registered. Run `crm login` to sign in.")
	return nil
}

func (rt *runtime) whoami() error {
	if !rt.store.IsAuthenticated() {
		fmt.Println("Not logged in.")
		return nil
	}
	username := rt.store.Username()
	if username == "" {
		username = "(identity unavailable)"
	}
	fmt.Printf("User: %s\n", username)
	if role := rt.store.Role(); role != "" {
		fmt.Printf("Role: %s\n", role)
	}
	if id, ok := rt.store.UserID(); ok {
		fmt.Printf("ID:   %d\n", id)
	}
	if expiry, ok := session.TokenExpiry(rt.store.AccessToken()); ok {
		fmt.Printf("Token expires: %s\n", expiry.Local().Format(time.RFC1123))
	}
	return nil
}

func (rt *runtime) dashboard(ctx context.Context) error {
	svc, err := dashboard.New(rt.api, dashboard.WithLogger(rt.log))
	if err != nil {
		return err
	}
	stats, err := svc.Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Customers: %d (%d active, %d inactive)\n", stats.TotalCustomers, stats.ActiveCustomers, stats.InactiveCustomers)
	fmt.Printf("Leads:     %d (%d open, %d won, %d lost, open value %.2f)\n", stats.TotalLeads, stats.OpenLeads, stats.WonLeads, stats.LostLeads, stats.OpenValue)
	fmt.Printf("Tasks:     %d (%d completed, %d pending, %d%% complete)\n", stats.TotalTasks, stats.CompletedTasks, stats.PendingTasks, stats.CompletionPercent())
	return nil
}

// listFlags is the shared list-command surface: page, search, and filter.
type listFlags struct {
	page   int
	search string
	filter string
}

func parseListFlags(name string, args []string, withSearch bool, filterName string) (listFlags, []string, error) {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	lf := listFlags{}
	flags.IntVar(&lf.page, "page", 1, "page number")
	if withSearch {
		flags.StringVar(&lf.search, "search", "", "search text")
	}
	if filterName != "" {
		flags.StringVar(&lf.filter, filterName, "", "filter value")
	}
	err := flags.Parse(args)
	return lf, flags.Args(), err
}

// runList drives a controller through the standard fetch sequence: apply
// search/filter (each fetches page 1), then jump to the requested page.
func runList[T any](ctx context.Context, c *listview.Controller[T], lf listFlags) error {
	if lf.search != "" {
		if err := c.SetSearch(ctx, lf.search); err != nil {
			return err
		}
	}
	if lf.filter != "" {
		if err := c.SetFilter(ctx, lf.filter); err != nil {
			return err
		}
	}
	if c.State() == listview.StateIdle {
		if err := c.FetchPage(ctx); err != nil {
			return err
		}
	}
	if lf.page > 1 {
		if err := c.GoToPage(ctx, lf.page); err != nil {
			return err
		}
	}
	return nil
}

func pageFooter[T any](c *listview.Controller[T]) string {
	return fmt.Sprintf("Page %d of %d (%d total)", c.Page(), c.TotalPages(), c.TotalCount())
}

func (rt *runtime) customers(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: crm customers <list|create|delete>")
	}
	c, err := customers.NewController(rt.api, rt.policy,
		listview.WithLogger[customers.Customer](rt.log),
		listview.WithUnauthorizedHandler[customers.Customer](rt.onUnauthorized),
	)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		lf, _, err := parseListFlags("customers list", args[1:], true, "")
		if err != nil {
			return err
		}
		if err := runList(ctx, c, lf); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tEMAIL\tCOMPANY\tSTATUS")
		for _, item := range c.Items() {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", item.ID, item.Name, item.Email, item.Company, item.Status)
		}
		w.Flush()
		fmt.Println(pageFooter(c))
		return nil
	case "create":
		flags := pflag.NewFlagSet("customers create", pflag.ContinueOnError)
		name := flags.String("name", "", "customer name")
		email := flags.String("email", "", "email")
		phone := flags.String("phone", "", "phone")
		company := flags.String("company", "", "company")
		status := flags.String("status", string(customers.StatusActive), "Active or Inactive")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		return c.Create(ctx, customers.Params{
			Name:    *name,
			Email:   *email,
			Phone:   *phone,
			Company: *company,
			Status:  customers.Status(*status),
		})
	case "delete":
		return deleteItem(ctx, c, args[1:])
	}
	return errors.Errorf("unknown customers subcommand %q", args[0])
}

func (rt *runtime) leads(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: crm leads <list|create|delete>")
	}
	c, err := leads.NewController(rt.api, rt.policy,
		listview.WithLogger[leads.Lead](rt.log),
		listview.WithUnauthorizedHandler[leads.Lead](rt.onUnauthorized),
	)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		lf, _, err := parseListFlags("leads list", args[1:], true, "status")
		if err != nil {
			return err
		}
		if err := runList(ctx, c, lf); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tCUSTOMER\tVALUE\tSTATUS")
		for _, item := range c.Items() {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", item.ID, item.Title, item.Customer, item.Value, item.Status)
		}
		w.Flush()
		fmt.Println(pageFooter(c))
		return nil
	case "create":
		flags := pflag.NewFlagSet("leads create", pflag.ContinueOnError)
		title := flags.String("title", "", "lead title")
		customer := flags.Int64("customer", 0, "customer id")
		value := flags.String("value", "", "lead value")
		status := flags.String("status", string(leads.StatusOpen), "Open, Won or Lost")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		return c.Create(ctx, leads.Params{
			Title:    *title,
			Customer: *customer,
			Value:    leads.Decimal(*value),
			Status:   leads.Status(*status),
		})
	case "delete":
		return deleteItem(ctx, c, args[1:])
	}
	return errors.Errorf("unknown leads subcommand %q", args[0])
}

func (rt *runtime) tasks(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: crm tasks <list|create|complete|delete>")
	}
	c, err := tasks.NewController(rt.api, rt.policy,
		listview.WithLogger[tasks.Task](rt.log),
		listview.WithUnauthorizedHandler[tasks.Task](rt.onUnauthorized),
	)
	if err != nil {
		return err
	}

	switch args[0] {
	case "list":
		lf, _, err := parseListFlags("tasks list", args[1:], false, "completed")
		if err != nil {
			return err
		}
		if err := runList(ctx, c, lf); err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tASSIGNED\tDUE\tDONE")
		for _, item := range c.Items() {
			assigned := "-"
			if item.AssignedTo != nil {
				assigned = fmt.Sprintf("%d", *item.AssignedTo)
			}
			due := "-"
			if item.DueDate != nil {
				due = item.DueDate.Local().Format("2006-01-02")
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%t\n", item.ID, item.Title, assigned, due, item.Completed)
		}
		w.Flush()
		fmt.Println(pageFooter(c))
		return nil
	case "create":
		flags := pflag.NewFlagSet("tasks create", pflag.ContinueOnError)
		title := flags.String("title", "", "task title")
		description := flags.String("description", "", "task description")
		assignedTo := flags.Int64("assigned-to", 0, "assignee user id (0 assigns to yourself)")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		params := tasks.Params{Title: *title, Description: *description}
		if *assignedTo > 0 {
			params.AssignedTo = utils.Ptr(*assignedTo)
		} else if id, ok := rt.store.UserID(); ok {
			params.AssignedTo = utils.Ptr(id)
		}
		return c.Create(ctx, params)
	case "complete":
		flags := pflag.NewFlagSet("tasks complete", pflag.ContinueOnError)
		id := flags.Int64("id", 0, "task id")
		if err := flags.Parse(args[1:]); err != nil {
			return err
		}
		if err := c.FetchPage(ctx); err != nil {
			return err
		}
		for _, item := range c.Items() {
			if item.ID == *id {
				return tasks.ToggleCompleted(ctx, c, item)
			}
		}
		return errors.Errorf("task %d not on the current page", *id)
	case "delete":
		return deleteItem(ctx, c, args[1:])
	}
	return errors.Errorf("unknown tasks subcommand %q", args[0])
}

// deleteItem implements the two-step confirm: without --confirm it only
// reports what would be deleted.
func deleteItem[T any](ctx context.Context, c *listview.Controller[T], args []string) error {
	flags := pflag.NewFlagSet("delete", pflag.ContinueOnError)
	id := flags.Int64("id", 0, "item id")
	confirmed := flags.Bool("confirm", false, "actually delete")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *id == 0 {
		return errors.New("--id is required")
	}

	if err := c.FetchPage(ctx); err != nil {
		return err
	}
	if err := c.BeginDelete(*id); err != nil {
		return err
	}
	if !*confirmed {
		c.CancelDelete()
		fmt.Printf("Would delete item %d. Re-run with --confirm to proceed.\n", *id)
		return nil
	}
	if err := c.ConfirmDelete(ctx); err != nil {
		return err
	}
	fmt.Printf("Deleted item %d.\n", *id)
	return nil
}
