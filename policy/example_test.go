package policy_test

import (
	"context"
	"fmt"

	"github.com/jonwraymond/gateops/policy"
)

func ExampleEngine_Evaluate() {
	engine := policy.NewEngine()

	document := `{
		"name": "payments",
		"rules": [
			{
				"id": "block-delete",
				"effect": "deny",
				"priority": 90,
				"actions": ["delete"],
				"reason": "delete is disabled on payment servers"
			},
			{
				"id": "dev-tools",
				"effect": "allow",
				"priority": 50,
				"roles": ["dev"],
				"resources": ["payments/*"]
			}
		]
	}`
	if err := engine.Load("payments", []byte(document)); err != nil {
		fmt.Println("load:", err)
		return
	}

	input := &policy.Input{
		Subject:  policy.Subject{ID: "alice", Roles: []string{"dev"}},
		Action:   "invoke",
		Resource: policy.Resource{Server: "payments", Tool: "refund"},
	}

	decision, err := engine.Evaluate(context.Background(), "payments", input)
	if err != nil {
		fmt.Println("evaluate:", err)
		return
	}

	fmt.Println("Allowed:", decision.Allowed)
	fmt.Println("Rule:", decision.RuleID)
	// Output:
	// Allowed: true
	// Rule: dev-tools
}

func ExampleEngine_Evaluate_deny() {
	engine := policy.NewEngine()

	document := `{
		"rules": [{
			"id": "block-delete",
			"effect": "deny",
			"priority": 90,
			"actions": ["delete"],
			"reason": "delete is disabled on payment servers"
		}]
	}`
	if err := engine.Load("payments", []byte(document)); err != nil {
		fmt.Println("load:", err)
		return
	}

	input := &policy.Input{
		Subject:  policy.Subject{ID: "alice", Roles: []string{"admin"}},
		Action:   "delete",
		Resource: policy.Resource{Server: "payments", Tool: "refund"},
	}

	decision, _ := engine.Evaluate(context.Background(), "payments", input)
	fmt.Println("Allowed:", decision.Allowed)
	fmt.Println("Reason:", decision.Reason)
	// Output:
	// Allowed: false
	// Reason: delete is disabled on payment servers
}

func ExampleEngine_Load_compileError() {
	engine := policy.NewEngine()

	err := engine.Load("broken", []byte(`{"rules": [{"effect": "allow"}]}`))
	fmt.Println(err)
	// Output:
	// policy: compile "broken": rule 0: missing id
}

func ExampleEngine_Evaluate_conditions() {
	engine := policy.NewEngine()

	document := `{
		"rules": [{
			"id": "prod-only",
			"effect": "allow",
			"conditions": [
				{"attribute": "env", "operator": "eq", "value": "production"},
				{"attribute": "region", "operator": "in", "values": ["us-east", "eu-west"]}
			]
		}]
	}`
	if err := engine.Load("conditional", []byte(document)); err != nil {
		fmt.Println("load:", err)
		return
	}

	input := &policy.Input{
		Subject:    policy.Subject{ID: "svc-batch"},
		Action:     "invoke",
		Resource:   policy.Resource{Server: "search", Tool: "query"},
		Attributes: map[string]any{"env": "production", "region": "us-east"},
	}

	decision, _ := engine.Evaluate(context.Background(), "conditional", input)
	fmt.Println("Allowed:", decision.Allowed)

	input.Attributes["region"] = "ap-south"
	decision, _ = engine.Evaluate(context.Background(), "conditional", input)
	fmt.Println("Allowed:", decision.Allowed)
	// Output:
	// Allowed: true
	// Allowed: false
}
