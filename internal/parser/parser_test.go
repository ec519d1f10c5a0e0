package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleGo = `package auth

import (
	"errors"
	"strings"
)

// Credentials holds a login attempt
type Credentials struct {
	User string
	Pass string
}

// Validator checks credentials
type Validator interface {
	Validate(c Credentials) error
}

// Authenticate verifies the supplied credentials
func Authenticate(c Credentials) (bool, error) {
	if c.User == "" || c.Pass == "" {
		return false, errors.New("missing credentials")
	}
	for _, banned := range bannedUsers() {
		if strings.EqualFold(c.User, banned) {
			return false, nil
		}
	}
	return true, nil
}

func bannedUsers() []string {
	return []string{"root"}
}
`

func TestGoLanguage_Parse(t *testing.T) {
	lang := NewGoLanguage()
	result, err := lang.Parse("auth/auth.go", []byte(sampleGo))
	require.NoError(t, err)
	require.False(t, result.HasErrors())

	assert.Equal(t, "go", result.Language)
	assert.Equal(t, []string{"errors", "strings"}, result.Imports)

	require.Len(t, result.Functions, 2)
	auth := result.Functions[0]
	assert.Equal(t, "Authenticate", auth.Name)
	assert.Equal(t, "func Authenticate(c Credentials) (bool, error)", auth.Signature)
	assert.True(t, auth.Exported)
	assert.Contains(t, auth.Doc, "verifies the supplied credentials")
	assert.Greater(t, auth.Complexity, 1, "branches increase complexity")
	assert.Contains(t, auth.Calls, "bannedUsers")

	assert.False(t, result.Functions[1].Exported)

	require.Len(t, result.Classes, 2)
	assert.Equal(t, "Credentials", result.Classes[0].Name)
	assert.Equal(t, "Validator", result.Classes[1].Name)
	assert.Equal(t, []string{"Validate"}, result.Classes[1].Methods)

	assert.Equal(t, []string{"Authenticate", "Credentials", "Validator"}, result.Exports)
}

func TestGoLanguage_MethodsKeepReceiverQualifiedNames(t *testing.T) {
	const src = `package data

type User struct{ Name string }

func (u *User) String() string { return u.Name }

type Group struct{ Name string }

func (g Group) String() string { return g.Name }

func String() string { return "" }
`

	lang := NewGoLanguage()
	result, err := lang.Parse("data.go", []byte(src))
	require.NoError(t, err)

	require.Len(t, result.Functions, 3)
	assert.Equal(t, "User.String", result.Functions[0].Name)
	assert.Equal(t, "User", result.Functions[0].Receiver)
	assert.Equal(t, "Group.String", result.Functions[1].Name)
	assert.Equal(t, "Group", result.Functions[1].Receiver)
	assert.Equal(t, "String", result.Functions[2].Name)
	assert.Empty(t, result.Functions[2].Receiver)
}

func TestGoLanguage_SyntaxErrorIsRecoverable(t *testing.T) {
	lang := NewGoLanguage()
	result, err := lang.Parse("broken.go", []byte("package broken\n\nfunc incomplete(\n"))
	require.NoError(t, err, "syntax errors must not fail the parse")
	assert.True(t, result.HasErrors())
}

const sampleTS = `import { hash } from './crypto';
import express from 'express';

export function authenticate(user: string, pass: string): boolean {
	if (!user || !pass) {
		return false;
	}
	const digest = hash(pass);
	return verify(user, digest);
}

function verify(user: string, digest: string): boolean {
	return lookup(user) === digest;
}

export class SessionStore {
	private sessions: Map<string, string>;

	create(user: string): string {
		return issueToken(user);
	}

	revoke(token: string): void {
		this.sessions.delete(token);
	}
}
`

func TestScriptLanguage_Parse(t *testing.T) {
	lang := NewScriptLanguage("typescript", ".ts", ".tsx")
	result, err := lang.Parse("src/auth.ts", []byte(sampleTS))
	require.NoError(t, err)

	assert.Equal(t, "typescript", result.Language)
	assert.Equal(t, []string{"./crypto", "express"}, result.Imports)

	require.Len(t, result.Functions, 2)
	auth := result.Functions[0]
	assert.Equal(t, "authenticate", auth.Name)
	assert.True(t, auth.Exported)
	assert.Equal(t, 4, auth.StartLine)
	assert.Greater(t, auth.Complexity, 1)
	assert.Contains(t, auth.Calls, "hash")
	assert.Contains(t, auth.Calls, "verify")

	assert.Equal(t, "verify", result.Functions[1].Name)
	assert.False(t, result.Functions[1].Exported)

	require.Len(t, result.Classes, 1)
	cls := result.Classes[0]
	assert.Equal(t, "SessionStore", cls.Name)
	assert.True(t, cls.Exported)
	assert.Contains(t, cls.Methods, "create")
	assert.Contains(t, cls.Methods, "revoke")

	assert.Equal(t, []string{"SessionStore", "authenticate"}, result.Exports)
}

func TestScriptLanguage_ArrowFunctions(t *testing.T) {
	src := "export const createUser = async (name: string) => {\n\treturn save(name);\n};\n"
	lang := NewScriptLanguage("typescript", ".ts")
	result, err := lang.Parse("src/user.ts", []byte(src))
	require.NoError(t, err)

	require.Len(t, result.Functions, 1)
	assert.Equal(t, "createUser", result.Functions[0].Name)
	assert.True(t, result.Functions[0].Exported)
}

func TestMarkdownLanguage_Parse(t *testing.T) {
	src := "# Overview\n\nSome docs.\n\n## Authentication Flow\n\nDetails.\n"
	lang := NewMarkdownLanguage()
	result, err := lang.Parse("docs/guide.md", []byte(src))
	require.NoError(t, err)

	assert.Equal(t, "markdown", result.Language)
	assert.Empty(t, result.Functions)
	assert.Equal(t, []string{"Overview", "Authentication Flow"}, result.Exports)
}

func TestRegistry_Dispatch(t *testing.T) {
	reg := NewRegistry()

	testCases := []struct {
		path     string
		language string
	}{
		{"main.go", "go"},
		{"src/auth.ts", "typescript"},
		{"src/App.tsx", "typescript"},
		{"lib/util.js", "javascript"},
		{"README.md", "markdown"},
	}

	for _, tc := range testCases {
		lang, ok := reg.ForPath(tc.path)
		require.True(t, ok, tc.path)
		assert.Equal(t, tc.language, lang.Name())
	}

	assert.False(t, reg.Supported("image.png"))
	_, err := reg.ParseFile("data.bin", nil)
	assert.Error(t, err)
}
