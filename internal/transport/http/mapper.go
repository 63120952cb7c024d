package http

import (
	"github.com/vovakirdan/wiremeet-warden/internal/core"
	"github.com/vovakirdan/wiremeet-warden/internal/proto"
	"github.com/vovakirdan/wiremeet-warden/internal/store"
)

func occupantFromInfo(info *proto.OccupantInfo) core.Occupant {
	return core.Occupant{
		ID:          core.OccupantID(info.ID),
		Nick:        info.Nick,
		Role:        core.Role(info.Role),
		Affiliation: core.Affiliation(info.Affiliation),
		Session:     core.SessionID(info.Session),
	}
}

func roomSummaryFromInfo(info core.RoomInfo) RoomResponse {
	resp := RoomResponse{
		Room:        string(info.ID),
		HasHost:     info.HasHost,
		Host:        string(info.Host),
		MembersOnly: info.MembersOnly,
		Occupants:   len(info.Occupants),
	}
	if info.DestroyAt != nil {
		resp.DestroyAt = info.DestroyAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func roomDetailFromInfo(info core.RoomInfo) RoomDetailResponse {
	occupants := make([]OccupantResponse, 0, len(info.Occupants))
	for _, occ := range info.Occupants {
		occupants = append(occupants, OccupantResponse{
			ID:          string(occ.ID),
			Nick:        occ.Nick,
			Role:        string(occ.Role),
			Affiliation: string(occ.Affiliation),
		})
	}

	resp := RoomDetailResponse{
		Room:        string(info.ID),
		HasHost:     info.HasHost,
		Host:        string(info.Host),
		MembersOnly: info.MembersOnly,
		Occupants:   occupants,
	}
	if info.DestroyAt != nil {
		resp.DestroyAt = info.DestroyAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

func eventResponseFrom(ev *store.RoomEvent) RoomEventResponse {
	return RoomEventResponse{
		ID:       ev.ID,
		Kind:     string(ev.Kind),
		Occupant: ev.OccupantID,
		Detail:   ev.Detail,
		At:       ev.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
