// internal/handler/board_handler.go
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cyton-service/internal/cyton"
	"cyton-service/internal/service"
	"cyton-service/internal/utils"
)

// BoardHandler exposes the board session over HTTP
type BoardHandler struct {
	boardService *service.BoardService
	logger       *utils.ServiceLogger
}

// NewBoardHandler creates a new board handler
func NewBoardHandler(boardService *service.BoardService, logger *zap.Logger) *BoardHandler {
	return &BoardHandler{
		boardService: boardService,
		logger:       utils.NewServiceLogger(logger, "board-handler"),
	}
}

// Request bodies
type (
	MaxChannelsRequest struct {
		Channels int `json:"channels" binding:"required,oneof=8 16"`
	}
	TestSignalRequest struct {
		Signal cyton.TestSignal `json:"signal" binding:"required"`
	}
	SDStartRequest struct {
		Duration cyton.SDDuration `json:"duration" binding:"required"`
	}
	RadioChannelRequest struct {
		Channel  int  `json:"channel" binding:"min=0,max=25"`
		Override bool `json:"override"`
	}
	PollTimeRequest struct {
		PollTime int `json:"poll_time" binding:"min=0,max=255"`
	}
	BaudRateRequest struct {
		Speed string `json:"speed" binding:"required,oneof=default fast"`
	}
	ImpedanceLayoutRequest struct {
		Layout string `json:"layout" binding:"required"`
	}
)

// RegisterRoutes registers board routes
func (h *BoardHandler) RegisterRoutes(router *gin.RouterGroup) {
	board := router.Group("/board")
	{
		board.GET("", h.GetStatus)
		board.POST("/connect", h.Connect)
		board.POST("/disconnect", h.Disconnect)
		board.POST("/reset", h.SoftReset)
		board.GET("/registers", h.GetRegisters)

		board.POST("/stream/start", h.StreamStart)
		board.POST("/stream/stop", h.StreamStop)
		board.POST("/sync", h.SyncClocks)

		channels := board.Group("/channels")
		{
			channels.POST("/defaults", h.DefaultChannelSettings)
			channels.PUT("/max", h.SetMaxChannels)
			channels.PUT("/:channel", h.ChannelSet)
			channels.POST("/:channel/on", h.ChannelOn)
			channels.POST("/:channel/off", h.ChannelOff)
		}
		board.POST("/test-signal", h.TestSignal)

		sd := board.Group("/sd")
		{
			sd.POST("/start", h.SDStart)
			sd.POST("/stop", h.SDStop)
		}

		radio := board.Group("/radio")
		{
			radio.GET("/channel", h.RadioChannelGet)
			radio.PUT("/channel", h.RadioChannelSet)
			radio.GET("/poll-time", h.RadioPollTimeGet)
			radio.PUT("/poll-time", h.RadioPollTimeSet)
			radio.PUT("/baud-rate", h.RadioBaudRateSet)
			radio.GET("/status", h.RadioSystemStatus)
		}

		impedance := board.Group("/impedance")
		{
			impedance.POST("/all", h.ImpedanceAll)
			impedance.POST("/layout", h.ImpedanceLayout)
			impedance.POST("/channels/:channel", h.ImpedanceChannel)
			impedance.POST("/continuous/start", h.ImpedanceContinuousStart)
			impedance.POST("/continuous/stop", h.ImpedanceContinuousStop)
		}
	}
}

func channelParam(c *gin.Context) (int, bool) {
	ch, err := strconv.Atoi(c.Param("channel"))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "Invalid channel", err)
		return 0, false
	}
	return ch, true
}

// GetStatus returns the session snapshot
// @Summary Board status
// @Tags Board
// @Produce json
// @Success 200 {object} utils.APIResponse{data=cyton.Status}
// @Router /board [get]
func (h *BoardHandler) GetStatus(c *gin.Context) {
	status, err := h.boardService.Status(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to get board status", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Board status retrieved", status)
}

// Connect opens the transport and waits for the reset banner
// @Summary Connect to the board
// @Tags Board
// @Produce json
// @Success 200 {object} utils.APIResponse{data=cyton.BoardInfo}
// @Failure 409 {object} utils.APIResponse "Already connected"
// @Failure 504 {object} utils.APIResponse "Board did not answer"
// @Router /board/connect [post]
func (h *BoardHandler) Connect(c *gin.Context) {
	info, err := h.boardService.Connect(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to connect to board", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Board connected", info)
}

func (h *BoardHandler) Disconnect(c *gin.Context) {
	if err := h.boardService.Disconnect(c.Request.Context()); err != nil {
		utils.BoardErrorResponse(c, "Failed to disconnect board", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Board disconnected", nil)
}

func (h *BoardHandler) SoftReset(c *gin.Context) {
	info, err := h.boardService.SoftReset(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to reset board", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Board reset", info)
}

func (h *BoardHandler) GetRegisters(c *gin.Context) {
	text, err := h.boardService.RegisterSettings(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to read register settings", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Register settings retrieved", gin.H{"registers": text})
}

// StreamStart starts sample streaming
// @Summary Start streaming
// @Tags Stream
// @Success 200 {object} utils.APIResponse
// @Failure 409 {object} utils.APIResponse "Not connected or already streaming"
// @Router /board/stream/start [post]
func (h *BoardHandler) StreamStart(c *gin.Context) {
	if err := h.boardService.StreamStart(c.Request.Context()); err != nil {
		utils.BoardErrorResponse(c, "Failed to start stream", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Stream started", nil)
}

// StreamStop stops sample streaming
// @Summary Stop streaming
// @Tags Stream
// @Success 200 {object} utils.APIResponse
// @Router /board/stream/stop [post]
func (h *BoardHandler) StreamStop(c *gin.Context) {
	if err := h.boardService.StreamStop(c.Request.Context()); err != nil {
		utils.BoardErrorResponse(c, "Failed to stop stream", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Stream stopped", nil)
}

// SyncClocks runs one time sync round trip and returns its result
// @Summary Synchronise board and host clocks
// @Tags Stream
// @Success 200 {object} utils.APIResponse{data=cyton.SyncResult}
// @Router /board/sync [post]
func (h *BoardHandler) SyncClocks(c *gin.Context) {
	res, err := h.boardService.SyncClocks(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to sync clocks", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Clocks synced", res)
}

func (h *BoardHandler) ChannelOn(c *gin.Context) {
	ch, ok := channelParam(c)
	if !ok {
		return
	}
	if err := h.boardService.ChannelOn(c.Request.Context(), ch); err != nil {
		utils.BoardErrorResponse(c, "Failed to turn channel on", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Channel on", gin.H{"channel": ch})
}

func (h *BoardHandler) ChannelOff(c *gin.Context) {
	ch, ok := channelParam(c)
	if !ok {
		return
	}
	if err := h.boardService.ChannelOff(c.Request.Context(), ch); err != nil {
		utils.BoardErrorResponse(c, "Failed to turn channel off", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Channel off", gin.H{"channel": ch})
}

// ChannelSet writes a full channel register configuration. The channel in
// the path wins over any channel in the body.
func (h *BoardHandler) ChannelSet(c *gin.Context) {
	ch, ok := channelParam(c)
	if !ok {
		return
	}
	var req cyton.ChannelSettings
	req.Channel = ch
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}
	req.Channel = ch

	if err := h.boardService.ChannelSet(c.Request.Context(), req); err != nil {
		utils.BoardErrorResponse(c, "Failed to set channel", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Channel settings applied", req)
}

func (h *BoardHandler) DefaultChannelSettings(c *gin.Context) {
	if err := h.boardService.DefaultChannelSettings(c.Request.Context()); err != nil {
		utils.BoardErrorResponse(c, "Failed to restore default channel settings", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Default channel settings restored", nil)
}

func (h *BoardHandler) SetMaxChannels(c *gin.Context) {
	var req MaxChannelsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}
	info, err := h.boardService.SetMaxChannels(c.Request.Context(), req.Channels)
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to set channel count", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Channel count set", info)
}

func (h *BoardHandler) TestSignal(c *gin.Context) {
	var req TestSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}
	if err := h.boardService.TestSignal(c.Request.Context(), req.Signal); err != nil {
		utils.BoardErrorResponse(c, "Failed to set test signal", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Test signal set", req)
}

func (h *BoardHandler) SDStart(c *gin.Context) {
	var req SDStartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}
	text, err := h.boardService.SDStart(c.Request.Context(), req.Duration)
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to start SD logging", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "SD logging started", gin.H{"response": text})
}

func (h *BoardHandler) SDStop(c *gin.Context) {
	text, err := h.boardService.SDStop(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to stop SD logging", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "SD logging stopped", gin.H{"response": text})
}

func (h *BoardHandler) RadioChannelGet(c *gin.Context) {
	ch, err := h.boardService.RadioChannelGet(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to get radio channel", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Radio channel retrieved", gin.H{"channel": ch})
}

func (h *BoardHandler) RadioChannelSet(c *gin.Context) {
	var req RadioChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}
	ch, err := h.boardService.RadioChannelSet(c.Request.Context(), req.Channel, req.Override)
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to set radio channel", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Radio channel set", gin.H{"channel": ch, "override": req.Override})
}

func (h *BoardHandler) RadioPollTimeGet(c *gin.Context) {
	pt, err := h.boardService.RadioPollTimeGet(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to get poll time", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Poll time retrieved", gin.H{"poll_time": pt})
}

func (h *BoardHandler) RadioPollTimeSet(c *gin.Context) {
	var req PollTimeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}
	pt, err := h.boardService.RadioPollTimeSet(c.Request.Context(), req.PollTime)
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to set poll time", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Poll time set", gin.H{"poll_time": pt})
}

func (h *BoardHandler) RadioBaudRateSet(c *gin.Context) {
	var req BaudRateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}
	baud, err := h.boardService.RadioBaudRateSet(c.Request.Context(), req.Speed)
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to set baud rate", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Baud rate set", gin.H{"baud_rate": baud})
}

func (h *BoardHandler) RadioSystemStatus(c *gin.Context) {
	up, err := h.boardService.RadioSystemStatus(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Failed to get radio status", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Radio status retrieved", gin.H{"board_up": up})
}

// ImpedanceChannel measures one channel
// @Summary Channel impedance
// @Description Measure P and N inputs of one channel, or only one with ?input=p|n
// @Tags Impedance
// @Param channel path int true "Channel number"
// @Param input query string false "Input" Enums(p, n)
// @Success 200 {object} utils.APIResponse{data=cyton.ChannelImpedance}
// @Router /board/impedance/channels/{channel} [post]
func (h *BoardHandler) ImpedanceChannel(c *gin.Context) {
	ch, ok := channelParam(c)
	if !ok {
		return
	}
	input := c.Query("input")
	if input != "" && input != "p" && input != "n" {
		utils.ErrorResponse(c, http.StatusBadRequest, "input must be p or n", nil)
		return
	}
	res, err := h.boardService.ImpedanceTestChannel(c.Request.Context(), ch, input)
	if err != nil {
		utils.BoardErrorResponse(c, "Impedance test failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Impedance measured", res)
}

func (h *BoardHandler) ImpedanceAll(c *gin.Context) {
	res, err := h.boardService.ImpedanceTestAll(c.Request.Context())
	if err != nil {
		utils.BoardErrorResponse(c, "Impedance test failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Impedance measured", res)
}

func (h *BoardHandler) ImpedanceLayout(c *gin.Context) {
	var req ImpedanceLayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BindErrorResponse(c, err)
		return
	}
	res, err := h.boardService.ImpedanceTestChannels(c.Request.Context(), req.Layout)
	if err != nil {
		utils.BoardErrorResponse(c, "Impedance test failed", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Impedance measured", res)
}

func (h *BoardHandler) ImpedanceContinuousStart(c *gin.Context) {
	if err := h.boardService.ImpedanceContinuousStart(c.Request.Context()); err != nil {
		utils.BoardErrorResponse(c, "Failed to start continuous impedance", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Continuous impedance started", nil)
}

func (h *BoardHandler) ImpedanceContinuousStop(c *gin.Context) {
	if err := h.boardService.ImpedanceContinuousStop(c.Request.Context()); err != nil {
		utils.BoardErrorResponse(c, "Failed to stop continuous impedance", err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "Continuous impedance stopped", nil)
}
