package history

import (
	"context"
	"errors"

	"github.com/Trio-Ads/saloneo/services/appointment-service/internal/model"
)

type Source interface {
	List(f model.Filter) []model.Appointment
}

// Directory resolves display names. A miss is reported as model.ErrNotFound.
type Directory interface {
	ServiceName(ctx context.Context, id string) (string, error)
	StylistName(ctx context.Context, id string) (string, error)
	ClientName(ctx context.Context, id string) (string, error)
}

// Ref is a foreign id with its resolved name. Found is false when the id
// does not resolve.
type Ref struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Found bool   `json:"found"`
}

type Aggregator struct {
	source Source
	dir    Directory
}

func NewAggregator(source Source, dir Directory) *Aggregator {
	return &Aggregator{source: source, dir: dir}
}

func (a *Aggregator) Global(f model.Filter) Counts {
	return CountAll(a.source.List(f))
}

func (a *Aggregator) Client(ctx context.Context, clientID string, f model.Filter) (ClientStats, error) {
	f.ClientID = clientID
	st := ForClient(a.source.List(f), clientID)
	if st.FavoriteServiceID != "" {
		ref, err := a.resolve(ctx, st.FavoriteServiceID, a.serviceName)
		if err != nil {
			return ClientStats{}, err
		}
		st.FavoriteService = &ref
	}
	if st.FavoriteStylistID != "" {
		ref, err := a.resolve(ctx, st.FavoriteStylistID, a.stylistName)
		if err != nil {
			return ClientStats{}, err
		}
		st.FavoriteStylist = &ref
	}
	return st, nil
}

func (a *Aggregator) ClientRef(ctx context.Context, id string) (Ref, error) {
	return a.resolve(ctx, id, a.clientName)
}

func (a *Aggregator) serviceName(ctx context.Context, id string) (string, error) {
	return a.dir.ServiceName(ctx, id)
}

func (a *Aggregator) stylistName(ctx context.Context, id string) (string, error) {
	return a.dir.StylistName(ctx, id)
}

func (a *Aggregator) clientName(ctx context.Context, id string) (string, error) {
	return a.dir.ClientName(ctx, id)
}

func (a *Aggregator) resolve(ctx context.Context, id string, lookup func(context.Context, string) (string, error)) (Ref, error) {
	if a.dir == nil {
		return Ref{ID: id}, nil
	}
	name, err := lookup(ctx, id)
	if errors.Is(err, model.ErrNotFound) {
		return Ref{ID: id}, nil
	}
	if err != nil {
		return Ref{}, err
	}
	return Ref{ID: id, Name: name, Found: true}, nil
}
