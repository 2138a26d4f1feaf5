package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spigell/talentcore/internal/rag"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask the knowledge base one question and print the answer as JSON",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ask(cmd, strings.Join(args, " "))
	},
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().Int64P("tenant", "t", 0, "tenant id of the caller (anonymous when unset)")
	askCmd.Flags().String("vertical", "", "vertical of the caller")
	askCmd.Flags().String("plan", "", "plan level of the caller")
}

func ask(cmd *cobra.Command, question string) {
	ctx := context.Background()

	application, logger := setup(ctx, "ask")
	defer application.Close()

	req := rag.Request{Query: question}
	if tenant, _ := cmd.Flags().GetInt64("tenant"); tenant > 0 {
		req.TenantID = &tenant
	}
	req.Vertical, _ = cmd.Flags().GetString("vertical")
	req.PlanLevel, _ = cmd.Flags().GetString("plan")

	resp, err := application.rag.Query(ctx, req)
	if err != nil {
		logger.Fatal("asking the knowledge base", zap.Error(err))
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		logger.Fatal("encoding the response", zap.Error(err))
	}
	fmt.Println(string(out))
}
