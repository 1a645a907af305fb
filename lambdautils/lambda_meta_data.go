package lambdautils

import (
	"context"

	"github.com/aws/aws-lambda-go/lambdacontext"
	"go.uber.org/zap"
)

// LambdaMetaData stored details about the current lambda context.
type LambdaMetaData struct {
	FunctionName    string
	FunctionVersion string
	LogGroupName    string
	LogStreamName   string
	MemoryLimitInMB int
	Context         *lambdacontext.LambdaContext
}

// GetLambdaMetaData returns MetaData extracted from the current lambda context.
func GetLambdaMetaData(ctx context.Context) LambdaMetaData {
	lm := LambdaMetaData{
		FunctionName:    lambdacontext.FunctionName,
		FunctionVersion: lambdacontext.FunctionVersion,
		LogGroupName:    lambdacontext.LogGroupName,
		LogStreamName:   lambdacontext.LogStreamName,
		MemoryLimitInMB: lambdacontext.MemoryLimitInMB,
	}

	lm.Context, _ = lambdacontext.FromContext(ctx)
	return lm
}

// RequestID returns the aws request id of the invocation, or an empty string
// outside of a lambda invocation.
func (lm LambdaMetaData) RequestID() string {
	if lm.Context == nil {
		return ""
	}

	return lm.Context.AwsRequestID
}

// Fields returns the zap fields identifying the function and invocation.
func (lm LambdaMetaData) Fields() []zap.Field {
	return []zap.Field{
		zap.String("function", lm.FunctionName),
		zap.String("function_version", lm.FunctionVersion),
		zap.String("request_id", lm.RequestID()),
	}
}

// RequestID returns the aws request id stored in ctx.
func RequestID(ctx context.Context) string {
	lctx, ok := lambdacontext.FromContext(ctx)
	if !ok {
		return ""
	}

	return lctx.AwsRequestID
}
