package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hubenschmidt/go-admissions/core"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage ingested documents",
	Long:  `Add, list, view, or delete the documents questions are answered from.`,
}

var documentAddCmd = &cobra.Command{
	Use:   "add [content]",
	Short: "Ingest a document",
	Long: `Chunks, embeds and stores a document. The content is read from the
argument, or from --file when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: withService(runDocumentAdd),
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  withService(runDocumentList),
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  withService(runDocumentGet),
}

var documentDeleteCmd = &cobra.Command{
	Use:   "delete [doc-id]",
	Short: "Delete a document and its chunks",
	Args:  cobra.ExactArgs(1),
	RunE:  withService(runDocumentDelete),
}

var (
	docTitle    string
	docCategory string
	docFile     string
)

func init() {
	categories := make([]string, len(core.Categories))
	for i, c := range core.Categories {
		categories[i] = string(c)
	}

	documentAddCmd.Flags().StringVarP(&docTitle, "title", "t", "", "document title")
	documentAddCmd.Flags().StringVar(&docCategory, "category", string(core.CategoryGeneral),
		"one of "+strings.Join(categories, ", "))
	documentAddCmd.Flags().StringVarP(&docFile, "file", "f", "", "read content from this file")
	_ = documentAddCmd.MarkFlagRequired("title")

	documentCmd.AddCommand(documentAddCmd)
	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentDeleteCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentAdd(cmd *cobra.Command, args []string) error {
	content, err := documentContent(args)
	if err != nil {
		return err
	}

	id, err := service.AddDocument(context.Background(), docTitle, content, docCategory)
	if err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}

	cmd.Printf("Added document %s\n", id)
	return nil
}

func documentContent(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if docFile == "" {
		return "", fmt.Errorf("content argument or --file is required")
	}
	data, err := os.ReadFile(docFile)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", docFile, err)
	}
	return string(data), nil
}

func runDocumentList(cmd *cobra.Command, args []string) error {
	docs, err := service.ListDocuments(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	for i := range docs {
		cmd.Printf("  %s\n", docs[i].ID)
		cmd.Printf("    Title:    %s\n", docs[i].Title)
		cmd.Printf("    Category: %s\n", docs[i].Category)
		cmd.Println()
	}

	cmd.Printf("Total: %d documents\n", len(docs))
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	doc, err := service.GetDocument(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("Document: %s\n\n", doc.ID)
	cmd.Printf("  Title:    %s\n", doc.Title)
	cmd.Printf("  Category: %s\n", doc.Category)
	cmd.Printf("  Created:  %s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	cmd.Printf("  Length:   %d characters\n", len([]rune(doc.Content)))
	return nil
}

func runDocumentDelete(cmd *cobra.Command, args []string) error {
	deleted, err := service.DeleteDocument(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if !deleted {
		cmd.Printf("Document %s not found, nothing deleted.\n", args[0])
		return nil
	}
	cmd.Printf("Deleted document %s\n", args[0])
	return nil
}
