// ABOUTME: Built-in mode table: personas, tool envelopes, temperatures, keyword lexicons
// ABOUTME: Default() returns a fresh Registry so concurrent sessions never share state

package modes

// Default returns a registry holding the built-in modes with Assistant as
// the default.
func Default() *Registry {
	r, err := NewRegistry(Assistant, Builtins()...)
	if err != nil {
		panic("modes: invalid built-in table: " + err.Error())
	}
	return r
}

// Builtins returns a fresh copy of the built-in mode table.
func Builtins() []Mode {
	return []Mode{
		{
			ID:           Assistant,
			Name:         "Assistant",
			Icon:         "💬",
			Color:        "252",
			Persona:      "a helpful general-purpose coding assistant",
			Instructions: "Answer directly. Ask a clarifying question when the request is ambiguous.",
			Aliases:      []string{"general", "chat", "default"},
			AllowedTools: []string{AllTools},
			Temperature:  0.7,
			Class:        Conversational,
			Lexicon: []string{
				"hello", "thanks", "thank you", "quick question", "what do you think",
				"can you help", "in general", "opinion", "chat",
			},
		},
		{
			ID:           Planner,
			Name:         "Planner",
			Icon:         "📋",
			Color:        "39",
			Persona:      "a methodical software architect who plans before building",
			Instructions: "Produce a numbered plan with milestones, risks, and open questions. Write only documentation and specification files.",
			Aliases:      []string{"plan", "planning", "architect", "design"},
			AllowedTools: []string{AllTools},
			TriggerTools: []string{"todo_write", "plan_*"},
			Temperature:  0.5,
			Class:        Conversational,
			Lexicon: []string{
				"plan", "design", "architecture", "roadmap", "approach", "strategy",
				"milestone", "requirements", "break down", "trade-off", "tradeoff", "spec",
			},
		},
		{
			ID:           Implementer,
			Name:         "Implementer",
			Icon:         "🛠",
			Color:        "42",
			Persona:      "a pragmatic engineer who writes working, tested code",
			Instructions: "Make the smallest complete change. Keep the build green and add tests alongside code.",
			Aliases:      []string{"code", "coder", "build", "implement", "implementation", "dev"},
			AllowedTools: []string{AllTools},
			TriggerTools: []string{"multiedit", "apply_patch"},
			Temperature:  0.3,
			Class:        Technical,
			Lexicon: []string{
				"implement", "write the code", "add a function", "create a", "build",
				"refactor", "function", "endpoint", "feature", "code", "class", "method",
			},
		},
		{
			ID:           Debugger,
			Name:         "Debugger",
			Icon:         "🐛",
			Color:        "196",
			Persona:      "a patient debugger who reproduces before fixing",
			Instructions: "Reproduce the failure, form a hypothesis, confirm with evidence, then propose the minimal fix.",
			Aliases:      []string{"debug", "debugging", "fix", "bugfix"},
			AllowedTools: []string{AllTools},
			TriggerTools: []string{"dlv*", "debug_*", "pprof*", "stacktrace"},
			Temperature:  0.2,
			Class:        Precise,
			Lexicon: []string{
				"bug", "error", "exception", "stack trace", "traceback", "crash",
				"failing", "broken", "debug", "panic", "not working", "doesn't work", "fix",
			},
		},
		{
			ID:           Reviewer,
			Name:         "Reviewer",
			Icon:         "🔍",
			Color:        "214",
			Persona:      "a rigorous code reviewer focused on correctness and clarity",
			Instructions: "Review the change for correctness, readability, and test coverage. Group findings by severity.",
			Aliases:      []string{"review", "code-review", "critic"},
			AllowedTools: []string{"read", "grep", "find", "ls", "glob", "git_*", "mcp__*"},
			DeniedTools:  []string{"git_push", "git_commit"},
			TriggerTools: []string{"git_diff", "review_*"},
			Temperature:  0.2,
			Class:        Precise,
			Lexicon: []string{
				"review", "pull request", "feedback", "best practice", "readability",
				"look over", "critique", "lgtm", "nitpick", "code quality",
			},
		},
		{
			ID:           Security,
			Name:         "Security",
			Icon:         "🛡",
			Color:        "160",
			Persona:      "a security engineer who assumes hostile input",
			Instructions: "Identify vulnerabilities with concrete exploit paths and rank them by impact.",
			Aliases:      []string{"sec", "secure", "audit", "security-audit"},
			AllowedTools: []string{"read", "grep", "find", "ls", "glob", "bash", "webfetch", "security_*", "mcp__*"},
			TriggerTools: []string{"security_*", "audit_*", "gosec*"},
			Temperature:  0.2,
			Class:        Precise,
			Lexicon: []string{
				"security", "vulnerability", "cve", "xss", "sql injection", "csrf",
				"authentication", "secret", "exploit", "sanitize", "encryption",
			},
		},
		{
			ID:           Researcher,
			Name:         "Researcher",
			Icon:         "🔭",
			Color:        "99",
			Persona:      "a curious researcher who reads before concluding",
			Instructions: "Survey the code and references first. Cite files and sources for every claim.",
			Aliases:      []string{"research", "explore", "explain", "learn"},
			AllowedTools: []string{"read", "grep", "find", "ls", "glob", "webfetch", "websearch", "mcp__*"},
			TriggerTools: []string{"websearch"},
			Temperature:  0.5,
			Class:        Conversational,
			Lexicon: []string{
				"research", "explain", "how does", "what is", "compare", "documentation",
				"investigate", "explore", "find out", "learn about",
			},
		},
	}
}
