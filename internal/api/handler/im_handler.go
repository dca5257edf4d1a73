package handler

import (
	"Courier/internal/api/config"
	"Courier/internal/api/dto"
	"Courier/internal/pkg/response"
	"Courier/internal/pkg/util"
	"Courier/internal/service"
	"strconv"

	"github.com/gin-gonic/gin"
)

type IMHandler struct {
	imService       service.IMService
	defaultPageSize int
}

func NewIMHandler(imService service.IMService, cfg config.IMConfig) *IMHandler {
	pageSize := cfg.DefaultPageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return &IMHandler{imService: imService, defaultPageSize: pageSize}
}

// CreateConversation 获取或创建单聊会话
func (s *IMHandler) CreateConversation(c *gin.Context) {
	var req dto.CreateConversationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	conv, err := s.imService.GetOrCreateConversation(c.Request.Context(), req.CurrentUserID, req.OtherUserID, req.InitialMessage)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, &dto.CreateConversationResp{ConversationID: conv.ID})
}

// GetConversationList 获取会话列表
func (s *IMHandler) GetConversationList(c *gin.Context) {
	var query dto.ListConversationsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}
	if err := util.ValidateDTO(&query); err != nil {
		response.Fail(c, response.BadRequest, err.Error())
		return
	}

	res, err := s.imService.GetConversationList(c.Request.Context(), query.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// GetChatHistory 向前翻页获取历史消息
func (s *IMHandler) GetChatHistory(c *gin.Context) {
	convID, query, ok := s.pageParams(c)
	if !ok {
		return
	}

	res, err := s.imService.GetChatHistory(c.Request.Context(), convID, query.Cursor, *query.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// SyncMessages 断线重连后补拉新消息
func (s *IMHandler) SyncMessages(c *gin.Context) {
	convID, query, ok := s.pageParams(c)
	if !ok {
		return
	}

	res, err := s.imService.SyncMessages(c.Request.Context(), convID, query.After, *query.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, res)
}

// SendMessage 发送消息接口
func (s *IMHandler) SendMessage(c *gin.Context) {
	var req dto.SendMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	res, err := s.imService.SendMessage(c.Request.Context(), &req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, &dto.SendMessageResp{MessageID: res.ID})
}

// DeleteConversation 删除会话 (级联删除消息)
func (s *IMHandler) DeleteConversation(c *gin.Context) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return
	}

	if err = s.imService.DeleteConversation(c.Request.Context(), convID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

func (s *IMHandler) pageParams(c *gin.Context) (uint64, *dto.MessagePageQuery, bool) {
	convID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.Error(c, service.ErrParamInvalid)
		return 0, nil, false
	}
	var query dto.MessagePageQuery
	if err = c.ShouldBindQuery(&query); err != nil {
		response.Error(c, service.ErrParamInvalid)
		return 0, nil, false
	}
	if query.Limit == nil {
		query.Limit = util.PtrInt(s.defaultPageSize)
	}
	return convID, &query, true
}
