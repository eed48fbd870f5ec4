// ABOUTME: Admin CLI for reviewing registrations and provisioning staff wallets
// ABOUTME: Operates directly on the configured store and records every change in the audit log

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"

	"github.com/oneblock/oneblock-gateway/internal/admin"
	"github.com/oneblock/oneblock-gateway/internal/config"
	"github.com/oneblock/oneblock-gateway/internal/gateway"
	"github.com/oneblock/oneblock-gateway/internal/store"
	"github.com/oneblock/oneblock-gateway/internal/wallet"
)

const banner = `
                   _     _            _                  _           _
  ___  _ __   ___ | |__ | | ___   ___| | __     __ _  __| |_ __ ___ (_)_ __
 / _ \| '_ \ / _ \| '_ \| |/ _ \ / __| |/ /___ / _' |/ _' | '_ ' _ \| | '_ \
| (_) | | | |  __/| |_) | | (_) | (__|   <____| (_| | (_| | | | | | | | | | |
 \___/|_| |_|\___||_.__/|_|\___/ \___|_|\_\    \__,_|\__,_|_| |_| |_|_|_| |_|
`

// EnvActor names the operator recorded in the audit log.
const EnvActor = "ONEBLOCK_ADMIN_ACTOR"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	if cmd == "help" || cmd == "-h" || cmd == "--help" {
		printUsage()
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cmd, args); err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd string, args []string) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if cmd == "recover" {
		return cmdRecover(cfg, args)
	}

	s, err := gateway.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	svc := admin.NewService(s, nil)

	switch cmd {
	case "registrations":
		return cmdRegistrations(ctx, svc, args)
	case "approve":
		return cmdApprove(ctx, svc, args)
	case "reject":
		return cmdReject(ctx, svc, args)
	case "staff":
		return cmdStaff(ctx, svc, args)
	case "audit":
		return cmdAudit(ctx, svc, args)
	default:
		printUsage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

func printUsage() {
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	cyan.Print(banner)
	fmt.Println()
	fmt.Println("Usage: oneblock-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  registrations [--status S] [--limit N]   List registrations (pending, approved, rejected)")
	fmt.Println("  approve <address>                         Approve a pending registration")
	fmt.Println("  reject <address> [--reason R]             Reject a pending registration")
	fmt.Println("  staff list                                List staff wallets")
	fmt.Println("  staff add --address A --role R [--name N] Provision a staff wallet (admin, teacher)")
	fmt.Println("  audit [--action A] [--target T] [--limit N]  Show the audit log")
	fmt.Println("  recover <signature>                       Show the wallet that signed the login challenge")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  ONEBLOCK_CONFIG         Gateway config file (default ~/.config/oneblock/gateway.yaml)")
	fmt.Println("  ONEBLOCK_ADMIN_ACTOR    Operator name recorded in the audit log (default $USER)")
	fmt.Println()
}

// getConfigPath mirrors the gateway's lookup so both binaries share one file.
func getConfigPath() string {
	if envPath := os.Getenv(config.EnvConfigPath); envPath != "" {
		return envPath
	}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(configDir, "oneblock", "gateway.yaml")
}

func actor() string {
	if v := os.Getenv(EnvActor); v != "" {
		return v
	}
	return getEnv("USER", "admin-cli")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// auditFilter builds an audit query from parsed flags.
func auditFilter(flags map[string]string) (store.AuditFilter, error) {
	limit, err := parseLimit(flags)
	if err != nil {
		return store.AuditFilter{}, err
	}

	filter := store.AuditFilter{Limit: limit}
	if v, ok := flags["action"]; ok {
		action, err := store.ParseAuditAction(v)
		if err != nil {
			return store.AuditFilter{}, err
		}
		filter.Action = &action
	}
	if v, ok := flags["target"]; ok {
		target, err := wallet.NormalizeAddress(v)
		if err != nil {
			return store.AuditFilter{}, err
		}
		filter.TargetID = &target
	}
	if v, ok := flags["actor"]; ok {
		filter.Actor = &v
	}
	return filter, nil
}

// parseFlags collects "--name value" pairs and positional arguments.
func parseFlags(args []string, known ...string) (map[string]string, []string, error) {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}

	flags := make(map[string]string)
	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) < 3 || arg[:2] != "--" {
			positional = append(positional, arg)
			continue
		}
		name := arg[2:]
		if !allowed[name] {
			return nil, nil, fmt.Errorf("unknown flag: %s", arg)
		}
		if i+1 >= len(args) {
			return nil, nil, fmt.Errorf("%s requires a value", arg)
		}
		flags[name] = args[i+1]
		i++
	}
	return flags, positional, nil
}

func parseLimit(flags map[string]string) (int, error) {
	v, ok := flags["limit"]
	if !ok {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("--limit must be a non-negative integer")
	}
	return n, nil
}

func cmdRegistrations(ctx context.Context, svc *admin.Service, args []string) error {
	flags, _, err := parseFlags(args, "status", "limit")
	if err != nil {
		return err
	}
	limit, err := parseLimit(flags)
	if err != nil {
		return err
	}

	regs, err := svc.ListRegistrations(ctx, flags["status"], limit)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Registrations")
	cyan.Println("  -------------")

	if len(regs) == 0 {
		fmt.Println("  (no registrations)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  STUDENT ID\tADDRESS\tNAME\tEMAIL\tSTATUS\tCREATED")
	fmt.Fprintln(w, "  ----------\t-------\t----\t-----\t------\t-------")
	for _, r := range regs {
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\t%s\n",
			r.StudentID, r.Address, truncate(r.Name, 20), truncate(r.Email, 28),
			statusString(r.ApprovalStatus), r.CreatedAt.Format("Jan 02 15:04"))
	}
	w.Flush()
	fmt.Println()
	return nil
}

func statusString(s store.ApprovalStatus) string {
	switch s {
	case store.ApprovalApproved:
		return color.GreenString(string(s))
	case store.ApprovalRejected:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func cmdApprove(ctx context.Context, svc *admin.Service, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: approve <address>")
	}
	if err := svc.Approve(ctx, actor(), args[0]); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("✓ Approved %s\n", args[0])
	return nil
}

func cmdReject(ctx context.Context, svc *admin.Service, args []string) error {
	flags, positional, err := parseFlags(args, "reason")
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: reject <address> [--reason R]")
	}
	if err := svc.Reject(ctx, actor(), positional[0], flags["reason"]); err != nil {
		return err
	}
	color.New(color.FgYellow).Printf("✓ Rejected %s\n", positional[0])
	return nil
}

func cmdStaff(ctx context.Context, svc *admin.Service, args []string) error {
	if len(args) == 0 || args[0] == "list" {
		return cmdStaffList(ctx, svc)
	}
	if args[0] != "add" {
		return fmt.Errorf("unknown staff subcommand: %s", args[0])
	}

	flags, _, err := parseFlags(args[1:], "address", "role", "name")
	if err != nil {
		return err
	}
	staff, err := svc.AddStaff(ctx, actor(), admin.StaffRequest{
		Address:     flags["address"],
		Role:        flags["role"],
		DisplayName: flags["name"],
	})
	if err != nil {
		return err
	}

	color.New(color.FgGreen).Printf("✓ Provisioned %s\n", staff.Address)
	fmt.Printf("  ID:    %d\n", staff.ID)
	fmt.Printf("  Role:  %s\n", staff.Role)
	if staff.DisplayName != "" {
		fmt.Printf("  Name:  %s\n", staff.DisplayName)
	}
	return nil
}

func cmdStaffList(ctx context.Context, svc *admin.Service) error {
	staff, err := svc.ListStaff(ctx)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Staff")
	cyan.Println("  -----")

	if len(staff) == 0 {
		fmt.Println("  (no staff)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  ID\tADDRESS\tROLE\tNAME\tCREATED")
	fmt.Fprintln(w, "  --\t-------\t----\t----\t-------")
	for _, s := range staff {
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n",
			s.ID, s.Address, s.Role, truncate(s.DisplayName, 24), s.CreatedAt.Format("Jan 02 15:04"))
	}
	w.Flush()
	fmt.Println()
	return nil
}

func cmdAudit(ctx context.Context, svc *admin.Service, args []string) error {
	flags, _, err := parseFlags(args, "action", "target", "actor", "limit")
	if err != nil {
		return err
	}
	filter, err := auditFilter(flags)
	if err != nil {
		return err
	}

	entries, err := svc.AuditLog(ctx, filter)
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	fmt.Println()
	cyan.Println("  Audit Log")
	cyan.Println("  ---------")

	if len(entries) == 0 {
		fmt.Println("  (no entries)")
		fmt.Println()
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  TIME\tACTOR\tACTION\tTARGET\tDETAIL")
	fmt.Fprintln(w, "  ----\t-----\t------\t------\t------")
	for _, e := range entries {
		detail := ""
		if len(e.Detail) > 0 {
			detail = fmt.Sprint(e.Detail)
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format("Jan 02 15:04:05"), truncate(e.Actor, 16), e.Action, e.TargetID, truncate(detail, 40))
	}
	w.Flush()
	fmt.Println()
	return nil
}

// cmdRecover prints the address that produced signature over the configured challenge.
func cmdRecover(cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: recover <signature>")
	}
	addr, err := wallet.RecoverAddress(cfg.Auth.Challenge, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("  Challenge: %q\n", cfg.Auth.Challenge)
	color.New(color.FgGreen).Printf("  Signer:    %s\n", addr)
	return nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
