package mealapi

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrMalformedResponse is wrapped by every body that does not have the
// expected shape.
var ErrMalformedResponse = errors.New("malformed response")

// parseBatch decodes a /get-meal-batch body. The service answers 200 with an
// {"error": ...} body when it cannot produce ideas, so that case is an error
// too.
func parseBatch(body []byte) (Batch, error) {
	if !gjson.ValidBytes(body) {
		return Batch{}, fmt.Errorf("%w: meal batch is not valid JSON", ErrMalformedResponse)
	}
	res := gjson.ParseBytes(body)
	if !res.IsObject() {
		return Batch{}, fmt.Errorf("%w: meal batch is not an object", ErrMalformedResponse)
	}
	if msg := res.Get("error"); msg.Exists() {
		return Batch{}, fmt.Errorf("meal batch unavailable: %s", msg.String())
	}

	ideas, links := res.Get("ideas"), res.Get("links")
	if !ideas.IsArray() || !links.IsArray() {
		return Batch{}, fmt.Errorf("%w: meal batch needs ideas and links arrays", ErrMalformedResponse)
	}

	ideaResults, linkResults := ideas.Array(), links.Array()
	n := len(ideaResults)
	if len(linkResults) < n {
		n = len(linkResults)
	}

	batch := Batch{
		Ideas: make([]Idea, 0, n),
		Links: make([]Link, 0, n),
	}
	for i := 0; i < n; i++ {
		batch.Ideas = append(batch.Ideas, parseIdea(ideaResults[i]))
		batch.Links = append(batch.Links, parseLink(linkResults[i]))
	}
	return batch, nil
}

func parseIdea(r gjson.Result) Idea {
	if r.Type == gjson.String {
		return Idea{Title: r.String()}
	}
	idea := Idea{
		Title:       firstString(r, "recipe_title", "title", "name"),
		Description: firstString(r, "description"),
	}
	for _, tag := range r.Get("tags").Array() {
		idea.Tags = append(idea.Tags, tag.String())
	}
	return idea
}

func parseLink(r gjson.Result) Link {
	if r.Type == gjson.String {
		return Link{URL: r.String(), Source: hostOf(r.String())}
	}
	link := Link{
		Title:  firstString(r, "title", "recipe_title", "name"),
		URL:    firstString(r, "url", "link"),
		Image:  firstString(r, "image", "image_url"),
		Source: firstString(r, "source"),
	}
	if link.Source == "" {
		link.Source = hostOf(link.URL)
	}

	ingredients := r.Get("ingredients_per_portion")
	if !ingredients.Exists() {
		ingredients = r.Get("ingredients")
	}
	for _, ing := range ingredients.Array() {
		name := ing.String()
		if ing.IsObject() {
			name = firstString(ing, "name", "item_name")
		}
		if name = strings.TrimSpace(name); name != "" {
			link.Ingredients = append(link.Ingredients, name)
		}
	}
	return link
}

// parseGroceryItems accepts {"items": [...]}, {"grocery_items": [...]} or a
// bare array. Quantity may be a number or a string like "500g".
func parseGroceryItems(body []byte) ([]GroceryItem, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: grocery list is not valid JSON", ErrMalformedResponse)
	}
	res := gjson.ParseBytes(body)

	var list gjson.Result
	switch {
	case res.IsArray():
		list = res
	case res.IsObject():
		if msg := res.Get("error"); msg.Exists() {
			return nil, fmt.Errorf("grocery list unavailable: %s", msg.String())
		}
		for _, key := range []string{"items", "grocery_items"} {
			if v := res.Get(key); v.IsArray() {
				list = v
				break
			}
		}
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: grocery list has no items array", ErrMalformedResponse)
	}

	var items []GroceryItem
	for _, r := range list.Array() {
		name := strings.TrimSpace(firstString(r, "name", "item_name"))
		if name == "" {
			continue
		}
		item := GroceryItem{
			Name:  name,
			Unit:  firstString(r, "unit"),
			Price: r.Get("price").Float(),
		}
		q := r.Get("quantity")
		switch q.Type {
		case gjson.Number:
			item.Quantity = q.Float()
		case gjson.String:
			amount, unit := ParseQuantity(q.String())
			item.Quantity = amount
			if item.Unit == "" {
				item.Unit = unit
			}
		default:
			item.Quantity = 1
		}
		items = append(items, item)
	}
	return items, nil
}

// ParseQuantity splits strings like "500g", "1 L" or "2.5 kg" into amount and
// unit. A string without a leading number counts as one of itself.
func ParseQuantity(s string) (float64, string) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || s[end] == '.' || s[end] == ',') {
		end++
	}
	if end == 0 {
		return 1, s
	}
	amount, err := strconv.ParseFloat(strings.ReplaceAll(s[:end], ",", "."), 64)
	if err != nil {
		return 1, s
	}
	return amount, strings.TrimSpace(s[end:])
}

func firstString(r gjson.Result, keys ...string) string {
	for _, key := range keys {
		if v := r.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}
