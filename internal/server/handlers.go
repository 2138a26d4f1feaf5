package server

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spigell/talentcore/internal/analytics"
	"github.com/spigell/talentcore/internal/rag"

	"github.com/gofiber/fiber/v2"
)

type queryBody struct {
	Query string `json:"query" validate:"required,max=4000"`
}

type feedbackBody struct {
	Outcome  string            `json:"outcome" validate:"required"`
	Metadata map[string]string `json:"metadata"`
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "version": s.cfg.Version})
}

func (s *Server) ragQuery(c *fiber.Ctx) error {
	if s.services.RAG == nil {
		return fiber.ErrNotImplemented
	}

	var body queryBody
	if err := c.BodyParser(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(body); err != nil {
		return err
	}

	tenantID, err := optionalTenant(c)
	if err != nil {
		return err
	}

	resp, err := s.services.RAG.Query(c.UserContext(), rag.Request{
		Query:     body.Query,
		TenantID:  tenantID,
		Vertical:  strings.TrimSpace(c.Get(HeaderVertical)),
		PlanLevel: strings.TrimSpace(c.Get(HeaderPlan)),
		RequestID: requestID(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(resp)
}

func (s *Server) topCandidates(c *fiber.Ctx) error {
	if s.services.Matching == nil {
		return fiber.ErrNotImplemented
	}

	tenantID, err := requiredTenant(c)
	if err != nil {
		return err
	}
	jobID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	results, err := s.services.Matching.TopCandidatesForJob(c.UserContext(), jobID, limit, tenantID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"job_id": jobID, "candidates": results})
}

func (s *Server) matchCandidate(c *fiber.Ctx) error {
	if s.services.Matching == nil {
		return fiber.ErrNotImplemented
	}

	tenantID, err := requiredTenant(c)
	if err != nil {
		return err
	}
	jobID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	candidateID, err := pathID(c, "candidateID")
	if err != nil {
		return err
	}

	result, err := s.services.Matching.MatchCandidate(c.UserContext(), jobID, candidateID, tenantID)
	if err != nil {
		return err
	}
	return c.JSON(result)
}

func (s *Server) recommendations(c *fiber.Ctx) error {
	if s.services.Recommender == nil {
		return fiber.ErrNotImplemented
	}

	userID, err := pathID(c, "id")
	if err != nil {
		return err
	}
	limit, err := queryLimit(c)
	if err != nil {
		return err
	}

	recommend := s.services.Recommender.Recommend
	if c.QueryBool("hybrid", false) {
		recommend = s.services.Recommender.HybridRecommend
	}

	recs, err := recommend(c.UserContext(), userID, limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"user_id": userID, "recommendations": recs})
}

func (s *Server) feedback(c *fiber.Ctx) error {
	if s.services.Recommender == nil {
		return fiber.ErrNotImplemented
	}

	applicationID, err := pathID(c, "id")
	if err != nil {
		return err
	}

	var body feedbackBody
	if err := c.BodyParser(&body); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if err := s.validate.Struct(body); err != nil {
		return err
	}

	record, err := s.services.Recommender.RecordFeedback(c.UserContext(), applicationID, body.Outcome, body.Metadata)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(record)
}

func (s *Server) stats(c *fiber.Ctx) error {
	if s.services.Analytics == nil {
		return fiber.ErrNotImplemented
	}

	tenantID, err := optionalTenant(c)
	if err != nil {
		return err
	}
	period, err := analytics.ParsePeriod(c.Query("period", "7d"))
	if err != nil {
		return err
	}

	stats, err := s.services.Analytics.GetStats(c.UserContext(), tenantID, period)
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

func optionalTenant(c *fiber.Ctx) (*int64, error) {
	raw := strings.TrimSpace(c.Get(HeaderTenant))
	if raw == "" {
		return nil, nil
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: invalid %s header %q", errBadRequest, HeaderTenant, raw)
	}
	return &id, nil
}

func requiredTenant(c *fiber.Ctx) (int64, error) {
	id, err := optionalTenant(c)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, fmt.Errorf("%w: %s header is required", errBadRequest, HeaderTenant)
	}
	return *id, nil
}

func pathID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errBadRequest, name, c.Params(name))
	}
	return id, nil
}

func queryLimit(c *fiber.Ctx) (int, error) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw)
	}
	return min(limit, maxLimit), nil
}
