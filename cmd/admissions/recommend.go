package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hubenschmidt/go-admissions/scoring"
)

var (
	profileScore     float64
	profileTags      []string
	profileInterests []string
	scoringJSON      bool
)

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Rank degree programs for a student profile",
	Long: `Scores every catalog program against the profile and prints the best
matches. Omit --score when the student's CGPA is unknown.`,
	Args: cobra.NoArgs,
	RunE: withService(runRecommend),
}

var eligibilityCmd = &cobra.Command{
	Use:   "eligibility [program-id]",
	Short: "Check a profile against one program",
	Args:  cobra.ExactArgs(1),
	RunE:  withService(runEligibility),
}

var programsCmd = &cobra.Command{
	Use:   "programs",
	Short: "List catalog programs",
	Args:  cobra.NoArgs,
	RunE:  withService(runPrograms),
}

func init() {
	for _, c := range []*cobra.Command{recommendCmd, eligibilityCmd} {
		c.Flags().Float64VarP(&profileScore, "score", "s", 0, "CGPA or similar continuous score")
		c.Flags().StringSliceVar(&profileTags, "tags", nil, "subjects studied, comma separated")
		c.Flags().StringSliceVar(&profileInterests, "interests", nil, "interests, comma separated")
		c.Flags().BoolVar(&scoringJSON, "json", false, "output as JSON")
	}
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(eligibilityCmd)
	rootCmd.AddCommand(programsCmd)
}

func profileFromFlags(cmd *cobra.Command) scoring.Profile {
	p := scoring.Profile{Tags: profileTags, Interests: profileInterests}
	if cmd.Flags().Changed("score") {
		p.Score = scoring.Float64(profileScore)
	}
	return p
}

func runRecommend(cmd *cobra.Command, args []string) error {
	matches, err := service.GetRecommendations(profileFromFlags(cmd))
	if err != nil {
		return fmt.Errorf("recommendation failed: %w", err)
	}

	if scoringJSON {
		return printJSON(cmd, matches)
	}

	cmd.Println("Recommended programs:")
	cmd.Println()
	for i, m := range matches {
		status := "not eligible"
		if m.Eligible {
			status = "eligible"
		}
		cmd.Printf("  [%d] %s (%.1f, %s)\n", i+1, m.Program.Name, m.MatchScore, status)
		cmd.Printf("      academic %.1f, interest %.1f\n", m.Components.AcademicScore, m.Components.InterestScore)
	}
	return nil
}

func runEligibility(cmd *cobra.Command, args []string) error {
	e, err := service.CalculateEligibility(args[0], profileFromFlags(cmd))
	if err != nil {
		return fmt.Errorf("eligibility check failed: %w", err)
	}

	if scoringJSON {
		return printJSON(cmd, e)
	}

	cmd.Printf("Program:     %s\n", e.ProgramName)
	cmd.Printf("Eligible:    %t\n", e.Eligible)
	cmd.Printf("Percentage:  %.1f (academic %.1f, subjects %.1f)\n", e.Percentage, e.AcademicCredit, e.CategoricalCredit)
	if e.Scholarship.Eligible {
		cmd.Printf("Scholarship: %s (%.0f%%)\n", e.Scholarship.Name, e.Scholarship.Percentage)
	}
	return nil
}

func runPrograms(cmd *cobra.Command, args []string) error {
	for _, p := range service.Catalog().Programs() {
		cmd.Printf("  %s  %s (minimum %.2f)\n", p.ID, p.Name, p.MinimumScore)
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
