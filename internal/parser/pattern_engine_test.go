package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codescry/codescry/internal/types"
)

func elementsByKind(elems []*types.Element, kind types.ElementKind) []string {
	var names []string
	for _, e := range elems {
		if e.Kind == kind {
			names = append(names, e.Name)
		}
	}
	return names
}

func TestCanParse(t *testing.T) {
	engine := NewEngine()

	assert.True(t, engine.CanParse("main.go"))
	assert.True(t, engine.CanParse("src/App.tsx"))
	assert.True(t, engine.CanParse("lib/util.py"))
	assert.True(t, engine.CanParse("src/lib.rs"))
	assert.False(t, engine.CanParse("README.md"))
	assert.False(t, engine.CanParse("Makefile"))
	assert.False(t, engine.CanParse("photo.png"))
}

func TestParseGo(t *testing.T) {
	src := []byte(`package user

import (
	"context"
	"fmt"

	xhttp "net/http"
)

type User struct {
	Name string
}

type Store interface {
	Get(ctx context.Context, id string) (*User, error)
}

const MaxRetries = 3

var defaultStore Store

func NewUser(name string) *User {
	return &User{Name: name}
}

func (u *User) Greet(prefix string, loud bool) string {
	return fmt.Sprintf("%s %s", prefix, u.Name)
}
`)
	engine := NewEngine()
	result, err := engine.Parse("internal/user/user.go", src)
	require.NoError(t, err)

	assert.Equal(t, []string{"User"}, elementsByKind(result.Elements, types.KindStruct))
	assert.Equal(t, []string{"Store"}, elementsByKind(result.Elements, types.KindInterface))
	assert.Equal(t, []string{"NewUser"}, elementsByKind(result.Elements, types.KindFunction))
	assert.Equal(t, []string{"Greet"}, elementsByKind(result.Elements, types.KindMethod))
	assert.Equal(t, []string{"MaxRetries"}, elementsByKind(result.Elements, types.KindConstant))
	assert.Equal(t, []string{"defaultStore"}, elementsByKind(result.Elements, types.KindVariable))
	assert.ElementsMatch(t, []string{"context", "fmt", "net/http"}, result.Imports)

	for _, e := range result.Elements {
		assert.Equal(t, "go", e.Language)
		assert.Positive(t, e.Span.StartLine)
		assert.NotZero(t, e.ID)
	}
}

func TestParseGo_MethodParameters(t *testing.T) {
	src := []byte("func (s *Server) Handle(w http.ResponseWriter, r *http.Request) {}\n")
	result, err := NewEngine().Parse("server.go", src)
	require.NoError(t, err)
	require.Len(t, result.Elements, 1)
	assert.Equal(t, []string{"w http.ResponseWriter", "r *http.Request"}, result.Elements[0].Parameters)
}

func TestParseTypeScript(t *testing.T) {
	src := []byte(`import { format } from './util';
import React from 'react';

export interface Props {
	title: string;
}

export class UserCard {
	render() {}
}

export const formatName = (first: string, last: string) => first + last;

export enum Role {
	Admin,
	Viewer,
}

export type ID = string;
`)
	result, err := NewEngine().Parse("src/UserCard.tsx", src)
	require.NoError(t, err)

	assert.Equal(t, []string{"UserCard"}, elementsByKind(result.Elements, types.KindClass))
	assert.Equal(t, []string{"Props"}, elementsByKind(result.Elements, types.KindInterface))
	assert.Equal(t, []string{"formatName"}, elementsByKind(result.Elements, types.KindFunction))
	assert.Equal(t, []string{"Role"}, elementsByKind(result.Elements, types.KindEnum))
	assert.Equal(t, []string{"ID"}, elementsByKind(result.Elements, types.KindType))
	assert.ElementsMatch(t, []string{"./util", "react"}, result.Imports)
	assert.Contains(t, result.Exports, "Props")
	assert.Contains(t, result.Exports, "UserCard")

	for _, e := range result.Elements {
		assert.Equal(t, "typescript", e.Language)
	}
}

func TestParsePython(t *testing.T) {
	src := []byte(`from collections import defaultdict
import os.path

MAX_SIZE = 1024

class Indexer:
    def __init__(self, root):
        self.root = root

    async def scan(self, depth):
        pass

def main():
    pass
`)
	result, err := NewEngine().Parse("tools/indexer.py", src)
	require.NoError(t, err)

	assert.Equal(t, []string{"Indexer"}, elementsByKind(result.Elements, types.KindClass))
	assert.Equal(t, []string{"main"}, elementsByKind(result.Elements, types.KindFunction))
	assert.Equal(t, []string{"__init__", "scan"}, elementsByKind(result.Elements, types.KindMethod))
	assert.Equal(t, []string{"MAX_SIZE"}, elementsByKind(result.Elements, types.KindConstant))
	assert.ElementsMatch(t, []string{"collections", "os.path"}, result.Imports)
}

func TestParsePython_ComparisonIsNotAssignment(t *testing.T) {
	src := []byte("if x == 1:\n    pass\n")
	result, err := NewEngine().Parse("check.py", src)
	require.NoError(t, err)
	assert.Empty(t, result.Elements)
}

func TestParseRust(t *testing.T) {
	src := []byte(`use std::collections::HashMap;

pub struct Index {
    entries: HashMap<String, u64>,
}

pub trait Store {
    fn get(&self, key: &str) -> Option<u64>;
}

pub fn build(root: &str) -> Index {
    Index { entries: HashMap::new() }
}
`)
	result, err := NewEngine().Parse("src/index.rs", src)
	require.NoError(t, err)

	assert.Equal(t, []string{"Index"}, elementsByKind(result.Elements, types.KindStruct))
	assert.Equal(t, []string{"Store"}, elementsByKind(result.Elements, types.KindInterface))
	assert.Contains(t, elementsByKind(result.Elements, types.KindFunction), "build")
	assert.Equal(t, []string{"std::collections::HashMap"}, result.Imports)
}

func TestParse_UnsupportedExtension(t *testing.T) {
	_, err := NewEngine().Parse("notes.txt", []byte("hello"))
	assert.Error(t, err)
}

func TestParse_StableIDs(t *testing.T) {
	src := []byte("func Alpha() {}\n")
	a, err := NewEngine().Parse("a.go", src)
	require.NoError(t, err)
	b, err := NewEngine().Parse("a.go", src)
	require.NoError(t, err)
	require.Len(t, a.Elements, 1)
	require.Len(t, b.Elements, 1)
	assert.Equal(t, a.Elements[0].ID, b.Elements[0].ID)
}

func TestLanguageForPath(t *testing.T) {
	assert.Equal(t, "go", LanguageForPath("x/y/main.go"))
	assert.Equal(t, "typescript", LanguageForPath("App.TSX"))
	assert.Equal(t, "javascript", LanguageForPath("index.mjs"))
	assert.Equal(t, "cpp", LanguageForPath("core.cc"))
	assert.Equal(t, "", LanguageForPath("README"))
}
