package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/marcus/roster/internal/admin"
	"github.com/marcus/roster/internal/output"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errCannotManage = errors.New("admin mode needs local data or a Google sign-in")

// readPassword reads one line from r, or prompts without echo on a terminal.
func readPassword(r io.Reader, prompt io.Writer) (string, error) {
	if f, ok := r.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(prompt, "Admin password: ")
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

var adminCmd = &cobra.Command{
	Use:     "admin",
	Short:   "Enter or leave admin mode",
	GroupID: "system",
}

var adminLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Unlock driver, vehicle, work team and data management",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := activate(cmd)
		if err != nil {
			output.Error("%v", err)
			return err
		}
		if err := a.Start(cmd.Context()); err != nil {
			a.Close()
			output.Error("%v", err)
			return err
		}
		m := a.Mode()
		a.Close()
		if !m.CanManage() {
			output.Error("%v", errCannotManage)
			return errCannotManage
		}

		password, err := readPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
		if err != nil {
			output.Error("%v", err)
			return err
		}
		g, err := adminGate()
		if err != nil {
			return err
		}
		if err := g.Login(password); err != nil {
			output.Error("%v", err)
			return err
		}
		labels := make([]string, 0, len(admin.Tabs))
		for _, t := range admin.Visible(true) {
			labels = append(labels, t.Label())
		}
		output.Success("Admin mode on")
		fmt.Printf("Tabs: %s\n", strings.Join(labels, ", "))
		return nil
	},
}

var adminLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Return to normal mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := adminGate()
		if err != nil {
			return err
		}
		if err := g.Logout(); err != nil {
			output.Error("%v", err)
			return err
		}
		output.Success("Admin mode off")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminLoginCmd, adminLogoutCmd)
}
