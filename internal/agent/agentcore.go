package agent

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentcore"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// AgentCoreBootstrapper builds an AgentCoreInvoker from the shared AWS
// configuration, verifying the credentials with STS first.
type AgentCoreBootstrapper struct {
	Profile   string
	Region    string
	AgentARN  string
	Qualifier string
}

// Bootstrap implements Bootstrapper.
func (b *AgentCoreBootstrapper) Bootstrap(ctx context.Context) (*Handle, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(b.Region)}
	if b.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(b.Profile))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	identity, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, fmt.Errorf("get caller identity: %w", err)
	}

	return &Handle{
		Invoker: &AgentCoreInvoker{
			api:       bedrockagentcore.NewFromConfig(cfg),
			agentARN:  b.AgentARN,
			qualifier: b.Qualifier,
		},
		Identity: Identity{
			Account: aws.ToString(identity.Account),
			ARN:     aws.ToString(identity.Arn),
			UserID:  aws.ToString(identity.UserId),
		},
	}, nil
}

// agentRuntimeAPI is the subset of the bedrockagentcore client used here.
type agentRuntimeAPI interface {
	InvokeAgentRuntime(ctx context.Context, params *bedrockagentcore.InvokeAgentRuntimeInput, optFns ...func(*bedrockagentcore.Options)) (*bedrockagentcore.InvokeAgentRuntimeOutput, error)
}

// AgentCoreInvoker invokes a hosted agent runtime.
type AgentCoreInvoker struct {
	api       agentRuntimeAPI
	agentARN  string
	qualifier string
}

// Invoke implements Invoker.
func (i *AgentCoreInvoker) Invoke(ctx context.Context, req InvokeRequest) (*Invocation, error) {
	input := &bedrockagentcore.InvokeAgentRuntimeInput{
		AgentRuntimeArn:  aws.String(i.agentARN),
		Payload:          req.Payload,
		ContentType:      aws.String("application/json"),
		RuntimeSessionId: aws.String(req.SessionID),
	}
	if i.qualifier != "" {
		input.Qualifier = aws.String(i.qualifier)
	}

	out, err := i.api.InvokeAgentRuntime(ctx, input)
	if err != nil {
		return nil, err
	}

	inv := &Invocation{
		ContentType: aws.ToString(out.ContentType),
		SessionID:   aws.ToString(out.RuntimeSessionId),
	}
	if out.Response != nil {
		defer out.Response.Close()
		body, err := io.ReadAll(out.Response)
		if err != nil {
			return nil, fmt.Errorf("read agent response: %w", err)
		}
		inv.Body = body
	}

	if id, ok := awsmiddleware.GetRequestIDMetadata(out.ResultMetadata); ok {
		inv.RequestID = id
	}
	if raw, ok := awsmiddleware.GetRawResponse(out.ResultMetadata).(*smithyhttp.Response); ok {
		inv.HTTPStatus = raw.StatusCode
	}
	return inv, nil
}
