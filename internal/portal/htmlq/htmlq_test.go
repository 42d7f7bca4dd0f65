// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package htmlq

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
)

const page = `<!DOCTYPE html>
<html><body>
<form id="loginForm" action="doLogin!enter.action">
  <input type="hidden" name="loginToken" value="TOKEN-123">
  <input type="text" name="userName" class="field wide">
</form>
<div id="countersForm">
  <table class="grid">
    <tr><th>Тип</th><th>Номер</th></tr>
    <tr><td> Холодная вода </td><td>12-34<span>hint</span></td></tr>
    <tr><td><b>Nested only</b></td><td>  a  <i>x</i>  b </td></tr>
  </table>
</div>
<ul class="items"><li data-id="1">one</li><li data-id="2">two</li></ul>
</body></html>`

func parse(t *testing.T, s string) *html.Node {
	t.Helper()
	doc, err := Parse(strings.NewReader(s))
	require.NoError(t, err)
	return doc
}

func TestCompile(t *testing.T) {
	valid := []string{
		"#loginForm input[name=loginToken]",
		"#countersForm table tr",
		"input[name='loginToken']",
		`input[name="login Token"]`,
		"ul.items li[data-id]",
		"td.a.b",
		"*",
		"#countersForm > table tr:nth-child(n+2)",
		"th, td",
	}
	for _, s := range valid {
		_, err := Compile(s)
		assert.NoError(t, err, s)
	}

	invalid := []string{"", "   ", "#", ".", "[", "[name", "[name=x", "a >", "div:no-such-pseudo", `[name="x]`}
	for _, s := range invalid {
		_, err := Compile(s)
		assert.ErrorIs(t, err, ErrInvalidSelector, s)
	}
}

func TestSelectOne_LoginToken(t *testing.T) {
	doc := parse(t, page)
	input := SelectOne(doc, MustCompile("#loginForm input[name=loginToken]"))
	require.NotNil(t, input)
	v, ok := Attr(input, "value")
	assert.True(t, ok)
	assert.Equal(t, "TOKEN-123", v)

	_, ok = Attr(input, "missing")
	assert.False(t, ok)

	assert.Nil(t, SelectOne(doc, MustCompile("#tariffsForm table tr")))
}

func TestSelectAll_ClassesAndAttributes(t *testing.T) {
	doc := parse(t, page)

	assert.Len(t, SelectAll(doc, MustCompile("input.field.wide")), 1)
	assert.Len(t, SelectAll(doc, MustCompile("input.field.narrow")), 0)

	items := SelectAll(doc, MustCompile("ul.items li[data-id]"))
	require.Len(t, items, 2)
	assert.Equal(t, "one", Text(items[0]))
	assert.Equal(t, "two", Text(items[1]))

	assert.Len(t, SelectAll(doc, MustCompile(`li[data-id="2"]`)), 1)
}

func TestText_ConcatenatesStrippedNodes(t *testing.T) {
	doc := parse(t, `<p> a <b> b </b> c </p>`)
	assert.Equal(t, "abc", Text(SelectOne(doc, MustCompile("p"))))
	assert.Equal(t, "", Text(nil))
}

func TestTableRows(t *testing.T) {
	doc := parse(t, page)
	rows := TableRows(doc, MustCompile("#countersForm table tr"))

	want := [][]string{
		{"Тип", "Номер"},
		{"Холодная вода", "12-34"},
		{"Nested only", "a b"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}

	assert.Nil(t, TableRows(doc, MustCompile("#tariffsForm table tr")))
}

func TestTableRows_CombinatorsAndPseudoClasses(t *testing.T) {
	doc := parse(t, page)

	// The parser inserts tbody between table and tr.
	rows := TableRows(doc, MustCompile("#countersForm > table.grid > tbody > tr:nth-child(n+2)"))
	require.Len(t, rows, 2)
	assert.Equal(t, "Холодная вода", rows[0][0])

	assert.Empty(t, TableRows(doc, MustCompile("#countersForm > tr")))
	assert.Len(t, SelectAll(doc, MustCompile("th, li:last-child")), 3)
	assert.Equal(t, "two", Text(SelectOne(doc, MustCompile("li + li"))))
}

func TestExtract(t *testing.T) {
	doc := parse(t, page)

	v, err := Extract(doc, Rule{Selector: "#loginForm input[name=loginToken]", Attribute: "value"})
	require.NoError(t, err)
	assert.Equal(t, "TOKEN-123", v)

	v, err = Extract(doc, Rule{Selector: "ul.items li", Multiple: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, v)

	v, err = Extract(doc, Rule{
		Selector: "ul.items li",
		Multiple: true,
		Children: map[string]Rule{
			"label": {Selector: "*"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []map[string]any{{"label": nil}, {"label": nil}}, v)

	v, err = Extract(doc, Rule{
		Selector: "#countersForm",
		Children: map[string]Rule{
			"header": {Selector: "th"},
			"cls":    {Selector: "table", Attribute: "class"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"header": "Тип", "cls": "grid"}, v)

	v, err = Extract(doc, Rule{Selector: "ul.items li", Attribute: AttrHTML})
	require.NoError(t, err)
	assert.Equal(t, `<li data-id="1">one</li>`, v)

	v, err = Extract(doc, Rule{Selector: "#nothing"})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = Extract(doc, Rule{Selector: "#nothing", Multiple: true})
	require.NoError(t, err)
	assert.Equal(t, []string{}, v)

	_, err = Extract(doc, Rule{Selector: "a >"})
	assert.ErrorIs(t, err, ErrInvalidSelector)
}
