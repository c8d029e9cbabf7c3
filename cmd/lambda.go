package cmd

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"
)

var lambdaCmd = &cobra.Command{
	Use:   "lambda",
	Short: "Serve S3 upload notifications from the AWS Lambda runtime",
	Long: `Starts the Lambda runtime loop. Each invocation handles one S3 notification
batch. Clients are created once and reused across warm invocations.`,
	Args: cobra.NoArgs,
	RunE: runLambda,
}

func init() {
	rootCmd.AddCommand(lambdaCmd)
}

func runLambda(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), "rawproc-lambda")
	if err != nil {
		return err
	}
	defer a.Close()

	lambda.Start(a.processor.Handle)
	return nil
}
