package httpapi

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/PiperEve/BlueGhost/internal/model"
)

var errMissingUser = errors.New("request has no " + HeaderUserID + " header; treating as anonymous")

// CreatePostRequest is the body of POST /posts.
type CreatePostRequest struct {
	Payload model.Payload `json:"payload"`
	Style   model.Style   `json:"style"`
}

// ReactRequest is the body of POST /posts/{id}/reactions.
type ReactRequest struct {
	Reaction string `json:"reaction"`
}

// StartBattleRequest is the body of POST /battles.
type StartBattleRequest struct {
	OriginalPostID string        `json:"original_post_id"`
	Payload        model.Payload `json:"payload"`
	Style          model.Style   `json:"style"`
}

// VoteRequest is the body of POST /battles/{id}/votes.
type VoteRequest struct {
	Side string `json:"side"`
}

// SaveRequest is the body of POST /rewind.
type SaveRequest struct {
	PostID string `json:"post_id"`
}

// RemovedResponse answers idempotent deletes.
type RemovedResponse struct {
	Removed bool `json:"removed"`
}

// CreatePost handles POST /posts.
func CreatePost() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		var req CreatePostRequest
		if e := decodeBody(w, r, &req); e != nil {
			return e
		}
		post, err := rc.facade.CreatePost(r.Context(), rc.user, model.Draft{Payload: req.Payload, Style: req.Style})
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusCreated, post)
	}
}

// ListPosts handles GET /posts.
func ListPosts() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		posts, err := rc.facade.ListActivePosts(r.Context(), rc.user)
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, posts)
	}
}

// GetPost handles GET /posts/{id}.
func GetPost() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		post, err := rc.facade.GetPost(r.Context(), rc.user, mux.Vars(r)["id"])
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, post)
	}
}

// DeletePost handles DELETE /posts/{id}. Deleting a missing post reports removed=false.
func DeletePost() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		removed, err := rc.facade.DeletePost(r.Context(), rc.user, mux.Vars(r)["id"])
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, RemovedResponse{Removed: removed})
	}
}

// React handles POST /posts/{id}/reactions.
func React() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		var req ReactRequest
		if e := decodeBody(w, r, &req); e != nil {
			return e
		}
		kind, err := model.ParseReaction(req.Reaction)
		if err != nil {
			return fromError(err)
		}
		post, err := rc.facade.React(r.Context(), rc.user, mux.Vars(r)["id"], kind)
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, post)
	}
}

// StartBattle handles POST /battles.
func StartBattle() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		var req StartBattleRequest
		if e := decodeBody(w, r, &req); e != nil {
			return e
		}
		if req.OriginalPostID == "" {
			return badRequest(nil, "original_post_id is required")
		}
		battle, err := rc.facade.StartBattle(r.Context(), rc.user, req.OriginalPostID,
			model.Draft{Payload: req.Payload, Style: req.Style})
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusCreated, battle)
	}
}

// ListBattles handles GET /battles, including resolved battles still on display.
func ListBattles() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		battles, err := rc.facade.ListActiveBattles(r.Context(), rc.user)
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, battles)
	}
}

// GetBattle handles GET /battles/{id}.
func GetBattle() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		battle, err := rc.facade.GetBattle(r.Context(), rc.user, mux.Vars(r)["id"])
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, battle)
	}
}

// Vote handles POST /battles/{id}/votes.
func Vote() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		var req VoteRequest
		if e := decodeBody(w, r, &req); e != nil {
			return e
		}
		side, err := model.ParseSide(req.Side)
		if err != nil {
			return fromError(err)
		}
		battle, err := rc.facade.Vote(r.Context(), rc.user, mux.Vars(r)["id"], side)
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, battle)
	}
}

// ListSaved handles GET /rewind for the caller's saved posts.
func ListSaved() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		saved, err := rc.facade.ListSavedPosts(r.Context(), rc.user)
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, saved)
	}
}

// SaveToRewind handles POST /rewind.
func SaveToRewind() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		var req SaveRequest
		if e := decodeBody(w, r, &req); e != nil {
			return e
		}
		saved, err := rc.facade.SaveToRewind(r.Context(), rc.user, req.PostID)
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusCreated, saved)
	}
}

// DeleteSaved handles DELETE /rewind/{id}.
func DeleteSaved() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		removed, err := rc.facade.DeleteSavedPost(r.Context(), rc.user, mux.Vars(r)["id"])
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, RemovedResponse{Removed: removed})
	}
}

// RewindUsage handles GET /rewind/usage.
func RewindUsage() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		usage, err := rc.facade.RewindUsage(r.Context(), rc.user)
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, usage)
	}
}

// PurchaseEntitlement handles POST /rewind/entitlement once payment has completed.
func PurchaseEntitlement() Handler {
	return func(rc *RouterContext, w http.ResponseWriter, r *http.Request) *HTTPError {
		receipt, err := rc.facade.PurchaseEntitlement(r.Context(), rc.user)
		if err != nil {
			return fromError(err)
		}
		return writeJSON(w, http.StatusOK, receipt)
	}
}
