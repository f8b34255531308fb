// Package setup holds the interactive operator tooling for list
// administration.
package setup

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/internal/lists"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	danger    = lipgloss.AdaptiveColor{Light: "#C73535", Dark: "#FF5F5F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// ListAdmin is the registry surface the wizard drives.
type ListAdmin interface {
	Upsert(ctx context.Context, entry domain.ListEntry) (*domain.ListEntry, error)
	Get(ctx context.Context, token domain.TokenRef) (*domain.ListEntry, error)
	List(ctx context.Context) ([]*domain.ListEntry, error)
	Delete(ctx context.Context, token domain.TokenRef) error
}

// RunListTUI launches the terminal list administration wizard.
func RunListTUI(ctx context.Context, admin ListAdmin) error {
	var action string

	fmt.Print("\033[H\033[2J") // Clear screen
	fmt.Println(headerStyle.Render("SWEEPGUARD LIST ADMIN"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Whitelist, graylist or blacklist tokens for the decision engine.\n"))

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Choose an action").
				Options(
					huh.NewOption("Add or update a list entry", "upsert"),
					huh.NewOption("Inspect a token", "inspect"),
					huh.NewOption("Show all entries", "list"),
					huh.NewOption("Remove an entry", "delete"),
				).
				Value(&action),
		),
	).Run()
	if err != nil {
		return err
	}

	switch action {
	case "upsert":
		return runUpsert(ctx, admin)
	case "inspect":
		return runInspect(ctx, admin)
	case "list":
		return runListAll(ctx, admin)
	case "delete":
		return runDelete(ctx, admin)
	}
	return nil
}

func askToken() (domain.TokenRef, error) {
	var chain, address string

	fmt.Println(stepStyle.Render("TOKEN"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Chain").
				Options(
					huh.NewOption("Ethereum", "ethereum"),
					huh.NewOption("BSC", "bsc"),
					huh.NewOption("Base", "base"),
					huh.NewOption("Arbitrum", "arbitrum"),
					huh.NewOption("Polygon", "polygon"),
					huh.NewOption("Optimism", "optimism"),
					huh.NewOption("Avalanche", "avalanche"),
				).
				Value(&chain),
			huh.NewInput().
				Title("Contract Address").
				Description("Hex address (0x...)").
				Value(&address).
				Validate(func(s string) error {
					if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(s)), "0x") {
						return fmt.Errorf("must start with 0x")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return domain.TokenRef{}, err
	}

	token := domain.TokenRef{Chain: chain, Address: strings.TrimSpace(address)}
	return token, token.Validate()
}

func runUpsert(ctx context.Context, admin ListAdmin) error {
	token, err := askToken()
	if err != nil {
		return err
	}

	var (
		status  string
		reason  string
		setBy   string
		confirm bool
	)

	fmt.Println(stepStyle.Render("STANDING"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("List Status").
				Options(
					huh.NewOption("Whitelist (skip risk checks)", string(domain.ListWhitelist)),
					huh.NewOption("Graylist (always review)", string(domain.ListGraylist)),
					huh.NewOption("Blacklist (always reject)", string(domain.ListBlacklist)),
				).
				Value(&status),
			huh.NewInput().
				Title("Reason").
				Description("Shown in every decision touching this token").
				Value(&reason),
			huh.NewInput().
				Title("Operator").
				Value(&setBy),
		),
	).Run()
	if err != nil {
		return err
	}

	summary := fmt.Sprintf("Token:  %s\nStatus: %s\nReason: %s\n", token, status, reason)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save entry?").
				Affirmative("Yes, save").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("cancelled by operator")
	}

	parsed, err := domain.ParseListStatus(status)
	if err != nil {
		return err
	}
	if _, err := admin.Upsert(ctx, domain.ListEntry{
		Token:  token,
		Status: parsed,
		Reason: reason,
		SetBy:  setBy,
	}); err != nil {
		return errors.Wrap(err, "save list entry")
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("\n✓ Entry saved"))
	return nil
}

func runInspect(ctx context.Context, admin ListAdmin) error {
	token, err := askToken()
	if err != nil {
		return err
	}

	entry, err := admin.Get(ctx, token)
	if err != nil {
		if errors.Is(err, lists.ErrNotFound) {
			fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Token has no list entry."))
			return nil
		}
		return errors.Wrap(err, "get list entry")
	}

	fmt.Println(renderEntry(entry))
	return nil
}

func runListAll(ctx context.Context, admin ListAdmin) error {
	entries, err := admin.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list entries")
	}
	if len(entries) == 0 {
		fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Registry is empty."))
		return nil
	}

	for _, entry := range entries {
		fmt.Println(renderEntry(entry))
	}
	return nil
}

func runDelete(ctx context.Context, admin ListAdmin) error {
	token, err := askToken()
	if err != nil {
		return err
	}

	var confirm bool
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Remove entry for %s?", token)).
				Affirmative("Yes, remove").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return errors.New("cancelled by operator")
	}

	if err := admin.Delete(ctx, token); err != nil {
		return errors.Wrap(err, "delete list entry")
	}
	fmt.Println(lipgloss.NewStyle().Foreground(special).Render("\n✓ Entry removed"))
	return nil
}

func renderEntry(entry *domain.ListEntry) string {
	style := lipgloss.NewStyle().Foreground(special)
	switch entry.Status {
	case domain.ListBlacklist:
		style = lipgloss.NewStyle().Foreground(danger)
	case domain.ListGraylist:
		style = lipgloss.NewStyle().Foreground(subtle)
	}

	line := fmt.Sprintf("%-9s  %s", strings.ToUpper(string(entry.Status)), entry.Token)
	if entry.Reason != "" {
		line += "  (" + entry.Reason + ")"
	}
	return style.Render(line)
}
