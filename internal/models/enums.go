package models

import "fmt"

// The stored schema keeps these as plain TEXT columns. Decoding fails fast
// on unrecognized literals instead of passing free text through.

type Role string

const (
	RoleAdmin     Role = "admin"
	RoleLead      Role = "lead"
	RoleDeveloper Role = "developer"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleLead, RoleDeveloper:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role %q", s)
}

type Visibility string

const (
	VisibilityPrivate      Visibility = "private"
	VisibilityTeam         Visibility = "team"
	VisibilityOrganization Visibility = "organization"
	VisibilityPublic       Visibility = "public"
)

func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(s) {
	case VisibilityPrivate, VisibilityTeam, VisibilityOrganization, VisibilityPublic:
		return Visibility(s), nil
	}
	return "", fmt.Errorf("unknown visibility %q", s)
}

type EnvironmentType string

const (
	EnvironmentLocal      EnvironmentType = "local"
	EnvironmentShared     EnvironmentType = "shared"
	EnvironmentProduction EnvironmentType = "production"
)

func ParseEnvironmentType(s string) (EnvironmentType, error) {
	switch EnvironmentType(s) {
	case EnvironmentLocal, EnvironmentShared, EnvironmentProduction:
		return EnvironmentType(s), nil
	}
	return "", fmt.Errorf("unknown environment type %q", s)
}

type HookType string

const (
	HookPreCompletion    HookType = "pre-completion"
	HookUserPromptSubmit HookType = "user-prompt-submit"
	HookCustom           HookType = "custom"
)

func ParseHookType(s string) (HookType, error) {
	switch HookType(s) {
	case HookPreCompletion, HookUserPromptSubmit, HookCustom:
		return HookType(s), nil
	}
	return "", fmt.Errorf("unknown hook type %q", s)
}

type HookScope string

const (
	HookScopeGlobal  HookScope = "global"
	HookScopeTeam    HookScope = "team"
	HookScopeProject HookScope = "project"
)

func ParseHookScope(s string) (HookScope, error) {
	switch HookScope(s) {
	case HookScopeGlobal, HookScopeTeam, HookScopeProject:
		return HookScope(s), nil
	}
	return "", fmt.Errorf("unknown hook scope %q", s)
}

type KnowledgeType string

const (
	KnowledgeStandard     KnowledgeType = "standard"
	KnowledgeRequirement  KnowledgeType = "requirement"
	KnowledgePattern      KnowledgeType = "pattern"
	KnowledgeArchitecture KnowledgeType = "architecture"
)

func ParseKnowledgeType(s string) (KnowledgeType, error) {
	switch KnowledgeType(s) {
	case KnowledgeStandard, KnowledgeRequirement, KnowledgePattern, KnowledgeArchitecture:
		return KnowledgeType(s), nil
	}
	return "", fmt.Errorf("unknown knowledge type %q", s)
}

type KnowledgeScope string

const (
	KnowledgeScopeGlobal      KnowledgeScope = "global"
	KnowledgeScopeProject     KnowledgeScope = "project"
	KnowledgeScopeEnvironment KnowledgeScope = "environment"
)

func ParseKnowledgeScope(s string) (KnowledgeScope, error) {
	switch KnowledgeScope(s) {
	case KnowledgeScopeGlobal, KnowledgeScopeProject, KnowledgeScopeEnvironment:
		return KnowledgeScope(s), nil
	}
	return "", fmt.Errorf("unknown knowledge scope %q", s)
}
