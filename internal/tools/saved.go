package tools

import (
	"fmt"

	"github.com/bctelemetry/bctb/internal/queries"
)

func (h *Handlers) savedQueries(svc *services, args map[string]interface{}) (interface{}, error) {
	list, err := svc.saved.List(argString(args, "category"))
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []queries.SavedQuery{}
	}
	return map[string]interface{}{"total": len(list), "queries": list}, nil
}

func (h *Handlers) searchQueries(svc *services, args map[string]interface{}) (interface{}, error) {
	term := argString(args, "term")
	if term == "" {
		return nil, fmt.Errorf("term is required")
	}
	hits, err := svc.saved.Search(term)
	if err != nil {
		return nil, err
	}
	if hits == nil {
		hits = []queries.SavedQuery{}
	}
	return map[string]interface{}{"term": term, "total": len(hits), "queries": hits}, nil
}

func (h *Handlers) saveQuery(svc *services, args map[string]interface{}) (interface{}, error) {
	q := queries.SavedQuery{
		Name:        argString(args, "name"),
		Category:    argString(args, "category"),
		Description: argString(args, "description"),
		KQL:         argString(args, "query"),
	}
	if err := svc.saved.Save(q); err != nil {
		return nil, err
	}
	if q.Category == "" {
		q.Category = "general"
	}
	return map[string]interface{}{
		"success":  true,
		"name":     q.Name,
		"category": q.Category,
	}, nil
}

func (h *Handlers) categories(svc *services) (interface{}, error) {
	cats, err := svc.saved.Categories()
	if err != nil {
		return nil, err
	}
	if cats == nil {
		cats = []queries.CategoryCount{}
	}
	return map[string]interface{}{"categories": cats}, nil
}
