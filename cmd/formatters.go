package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"phiguard/core"
)

// outputAsJSON writes the value as indented JSON to stdout
func outputAsJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderRulesTable displays rules in a formatted table
func renderRulesTable(rules []core.AnomalyRule) {
	if len(rules) == 0 {
		infoColor.Println("No rules configured")
		return
	}

	headerColor.Println("DETECTION RULES")
	headerColor.Println(strings.Repeat("=", 110))
	fmt.Printf("%-20s %-25s %-24s %-10s %-8s %-10s %-10s\n",
		"ID", "Name", "Type", "Severity", "Enabled", "MinConf", "Cooldown")
	fmt.Println(strings.Repeat("-", 110))

	for _, rule := range rules {
		name := rule.Name
		if len(name) > 24 {
			name = name[:21] + "..."
		}

		enabled := "No"
		if rule.Enabled {
			enabled = "Yes"
		}

		fmt.Printf("%-20s %-25s %-24s %-10s %-8s %-10.2f %-10s\n",
			rule.ID, name, rule.Type, rule.DefaultSeverity, enabled,
			rule.MinConfidence, fmt.Sprintf("%dm", rule.CooldownMinutes))
	}

	fmt.Println(strings.Repeat("=", 110))
	fmt.Printf("\nTotal rules: %d\n", len(rules))
}

// renderRuleDetails displays detailed rule information
func renderRuleDetails(rule core.AnomalyRule) {
	headerColor.Println("═══════════════════════════════════════════════════════════════")
	headerColor.Printf("  Rule Details: %s\n", rule.Name)
	headerColor.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	printSection("Basic Information")
	printField("ID", rule.ID)
	printField("Name", rule.Name)
	printField("Description", rule.Description)
	printField("Type", string(rule.Type))
	printField("Enabled", formatBool(rule.Enabled))
	printField("Severity", string(rule.DefaultSeverity))
	printField("Min Confidence", fmt.Sprintf("%.2f", rule.MinConfidence))
	printField("Cooldown", fmt.Sprintf("%d minutes", rule.CooldownMinutes))
	fmt.Println()

	if len(rule.Conditions) > 0 {
		printSection("Conditions")
		for key, value := range rule.Conditions {
			printField(key, fmt.Sprintf("%v", value))
		}
		fmt.Println()
	}

	if len(rule.Tags) > 0 {
		printSection("Tags")
		for _, tag := range rule.Tags {
			infoColor.Printf("  • %s\n", tag)
		}
		fmt.Println()
	}

	printSection("Timestamps")
	printField("Created At", formatTime(rule.CreatedAt))
	printField("Updated At", formatTime(rule.UpdatedAt))
	fmt.Println()
}

// printSection prints a section header
func printSection(title string) {
	headerColor.Printf("  %s\n", title)
	headerColor.Println("  " + strings.Repeat("─", len(title)))
}

// printField prints a key-value field
func printField(key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Printf("  %-25s %s\n", key+":", value)
}

// formatBool returns a colored boolean string
func formatBool(b bool) string {
	if b {
		return color.New(color.FgGreen).Sprint("Yes")
	}
	return color.New(color.FgRed).Sprint("No")
}

// formatTime formats a timestamp
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "Never"
	}
	return t.Format("2006-01-02 15:04:05")
}
