package main

import (
	"bufio"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kithhq/kith/internal/category"
	"github.com/kithhq/kith/internal/synthesis"
)

// --- contact ---

var contactCmd = &cobra.Command{
	Use:   "contact",
	Short: "Manage contacts",
}

var contactAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a contact",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := strings.Join(args, " ")
		tier, _ := cmd.Flags().GetInt("tier")
		handle, _ := cmd.Flags().GetString("telegram")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/contacts", map[string]any{
			"name":            name,
			"tier":            tier,
			"telegram_handle": handle,
		})
		if err != nil {
			return err
		}

		var contact struct {
			ID string `json:"id"`
		}
		if err := decodeJSON(resp, &contact); err != nil {
			return err
		}
		printSuccess("Created contact %s (%s)", name, contact.ID)
		return nil
	},
}

var contactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/contacts")
		if err != nil {
			return err
		}

		var out struct {
			Contacts []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				Tier int    `json:"tier"`
			} `json:"contacts"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		if len(out.Contacts) == 0 {
			fmt.Println("No contacts yet.")
			return nil
		}
		for _, c := range out.Contacts {
			fmt.Printf("%s  tier %d  %s\n", colorize(colorCyan, c.ID[:8]), c.Tier, c.Name)
		}
		return nil
	},
}

var contactShowCmd = &cobra.Command{
	Use:   "show <contact-id>",
	Short: "Show a contact's categorized facts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/contacts/" + args[0])
		if err != nil {
			return err
		}
		var detail struct {
			Contact struct {
				ID   string `json:"id"`
				Name string `json:"name"`
				Tier int    `json:"tier"`
			} `json:"contact"`
			Tags []struct {
				Name string `json:"name"`
			} `json:"tags"`
		}
		if err := decodeJSON(resp, &detail); err != nil {
			return err
		}

		fmt.Printf("%s (tier %d)\n", colorize(colorBold, detail.Contact.Name), detail.Contact.Tier)
		if len(detail.Tags) > 0 {
			names := make([]string, len(detail.Tags))
			for i, t := range detail.Tags {
				names[i] = t.Name
			}
			fmt.Printf("Tags: %s\n", strings.Join(names, ", "))
		}

		resp, err = client.get(cmd.Context(), "/api/contacts/" + args[0] + "/facts?grouped=true")
		if err != nil {
			return err
		}
		var facts struct {
			Categories map[string][]string `json:"categories"`
		}
		if err := decodeJSON(resp, &facts); err != nil {
			return err
		}
		if len(facts.Categories) == 0 {
			fmt.Println("\nNo facts on record.")
			return nil
		}
		printCategories(os.Stdout, facts.Categories)
		return nil
	},
}

var contactEditCmd = &cobra.Command{
	Use:   "edit <contact-id>",
	Short: "Update a contact's name, tier, or telegram handle",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		tier, _ := cmd.Flags().GetInt("tier")
		handle, _ := cmd.Flags().GetString("telegram")
		if name == "" && tier == 0 && handle == "" {
			return fmt.Errorf("nothing to change; pass --name, --tier, or --telegram")
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.put(cmd.Context(), "/api/contacts/" + args[0], map[string]any{
			"name":            name,
			"tier":            tier,
			"telegram_handle": handle,
		})
		if err != nil {
			return err
		}
		var contact struct {
			Name string `json:"name"`
			Tier int    `json:"tier"`
		}
		if err := decodeJSON(resp, &contact); err != nil {
			return err
		}
		printSuccess("Updated %s (tier %d)", contact.Name, contact.Tier)
		return nil
	},
}

var contactDeleteCmd = &cobra.Command{
	Use:   "delete <contact-id>",
	Short: "Delete a contact and everything known about them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		confirm, _ := cmd.Flags().GetBool("confirm")
		if !confirm {
			printWarning("This deletes the contact, all notes, facts, and history. Use --confirm to proceed.")
			return nil
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.delete(cmd.Context(), "/api/contacts/" + args[0])
		if err != nil {
			return err
		}
		resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}
		printSuccess("Deleted contact %s", args[0])
		return nil
	},
}

func init() {
	contactAddCmd.Flags().Int("tier", 2, "closeness tier (1 inner circle, 2 regular, 3 periphery)")
	contactAddCmd.Flags().String("telegram", "", "telegram handle")
	contactEditCmd.Flags().String("name", "", "new name")
	contactEditCmd.Flags().Int("tier", 0, "new closeness tier (1-3)")
	contactEditCmd.Flags().String("telegram", "", "new telegram handle")
	contactDeleteCmd.Flags().Bool("confirm", false, "confirm deletion")
	contactCmd.AddCommand(contactAddCmd)
	contactCmd.AddCommand(contactListCmd)
	contactCmd.AddCommand(contactShowCmd)
	contactCmd.AddCommand(contactEditCmd)
	contactCmd.AddCommand(contactDeleteCmd)
}

// --- note ---

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Add notes about contacts",
}

var noteAddCmd = &cobra.Command{
	Use:   "add <contact-id>",
	Short: "Synthesize a note into facts, review, and commit",
	Long: `Synthesize a note into categorized facts.

The proposal is shown for review before anything is saved. Pass --yes to
commit without the prompt.

Examples:
  kith note add 4f3a21bc --text "Met for coffee, she just got promoted"
  kith note add 4f3a21bc --file ./meeting-notes.txt --yes`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		contactID := args[0]
		text, _ := cmd.Flags().GetString("text")
		file, _ := cmd.Flags().GetString("file")
		yes, _ := cmd.Flags().GetBool("yes")

		if text == "" && file == "" {
			return fmt.Errorf("one of --text or --file is required")
		}
		if file != "" {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading file: %w", err)
			}
			text = string(data)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/api/synthesize", map[string]any{
			"contact_id": contactID,
			"note":       text,
		})
		if err != nil {
			return err
		}
		var out struct {
			Proposal synthesis.Proposal `json:"proposal"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		printProposal(os.Stdout, out.Proposal)
		if len(out.Proposal.Updates) == 0 {
			printWarning("No facts proposed; nothing to commit.")
			return nil
		}

		if !yes && !confirmPrompt(os.Stdin, "Apply these updates?") {
			printWarning("Discarded. Nothing was saved.")
			return nil
		}

		resp, err = client.post(cmd.Context(), "/api/synthesize/commit", map[string]any{
			"contact_id": contactID,
			"note":       text,
			"engine":     out.Proposal.Engine,
			"confidence": out.Proposal.Confidence,
			"updates":    out.Proposal.Updates,
		})
		if err != nil {
			return err
		}
		var result struct {
			RawNoteID string `json:"raw_note_id"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Committed note %s", result.RawNoteID)
		return nil
	},
}

func init() {
	noteAddCmd.Flags().String("text", "", "note text")
	noteAddCmd.Flags().String("file", "", "file whose contents become the note")
	noteAddCmd.Flags().Bool("yes", false, "commit without the review prompt")
	noteCmd.AddCommand(noteAddCmd)
}

// --- search ---

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search contacts by name, fact, or note content",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/search?q=" + url.QueryEscape(query))
		if err != nil {
			return err
		}
		var out struct {
			Contacts []struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"contacts"`
		}
		if err := decodeJSON(resp, &out); err != nil {
			return err
		}

		if len(out.Contacts) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, c := range out.Contacts {
			fmt.Printf("%s  %s\n", colorize(colorCyan, c.ID[:8]), c.Name)
		}
		return nil
	},
}

// --- export ---

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all contacts and facts as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/export/csv")
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 400 {
			return fmt.Errorf("server returned %d", resp.StatusCode)
		}

		writer := os.Stdout
		if output != "" {
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating output file: %w", err)
			}
			defer f.Close()
			writer = f
		}
		if _, err := io.Copy(writer, resp.Body); err != nil {
			return err
		}
		if output != "" {
			printSuccess("Exported to %s", output)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("output", "", "output file path (default: stdout)")
}

// --- shared rendering ---

func printProposal(w io.Writer, p synthesis.Proposal) {
	if p.Degraded {
		printWarning("No AI provider responded; this is a keyword-only categorization.")
	}
	if p.Narrative != "" {
		fmt.Fprintf(w, "\n%s %s\n", colorize(colorBold, "Summary:"), p.Narrative)
	}
	fmt.Fprintf(w, "%s %.0f/10 (engine: %s)\n", colorize(colorBold, "Confidence:"), p.Confidence, p.Engine)

	updates := make(map[string][]string, len(p.Updates))
	for _, u := range p.Updates {
		updates[string(u.Category)] = u.Facts
	}
	printCategories(w, updates)
}

func printCategories(w io.Writer, categories map[string][]string) {
	for _, c := range category.Order {
		facts := categories[string(c)]
		if len(facts) == 0 {
			continue
		}
		fmt.Fprintf(w, "\n%s\n", colorize(colorBold, string(c)))
		for _, f := range facts {
			fmt.Fprintf(w, "  - %s\n", f)
		}
	}
}

func confirmPrompt(in io.Reader, question string) bool {
	fmt.Fprintf(os.Stderr, "%s [y/N] ", question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}
