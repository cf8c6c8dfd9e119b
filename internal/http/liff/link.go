package liff

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ecxia/fleet-safety/internal/linking"
	"github.com/ecxia/fleet-safety/internal/util"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// linkRequest is the body of a driver link claim.
type linkRequest struct {
	RegistrationToken string `json:"registrationToken"`
}

// Link claims a driver registration token for the verified LINE account.
// Status codes distinguish the token lifecycle outcomes: 404 unknown token,
// 409 already claimed or account bound elsewhere, 410 expired.
func (h *Handler) Link(c *gin.Context) {
	lineUserID := h.verifiedLineUserID(c)
	if lineUserID == "" {
		return
	}

	var body linkRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil || body.RegistrationToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "登録トークンが必要です"})
		return
	}

	result, errClaim := h.linking.ClaimDriverToken(c.Request.Context(), body.RegistrationToken, lineUserID)
	switch {
	case errClaim == nil:
		log.Infof("liff: driver %d linked to %s", result.ActorID, util.MaskLineUserID(lineUserID))
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"message":    fmt.Sprintf("%s さんのLINE連携が完了しました", result.Name),
			"driverName": result.Name,
		})
	case errors.Is(errClaim, linking.ErrTokenNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": "無効な登録トークンです。管理者に確認してください。"})
	case errors.Is(errClaim, linking.ErrTokenExpired):
		c.JSON(http.StatusGone, gin.H{"message": "登録トークンの有効期限が切れています。管理者に再発行を依頼してください。"})
	case errors.Is(errClaim, linking.ErrAlreadyBound):
		c.JSON(http.StatusConflict, gin.H{"message": "このLINEアカウントは既に別のドライバーに紐付けられています"})
	case errors.Is(errClaim, linking.ErrTokenAlreadyUsed):
		c.JSON(http.StatusConflict, gin.H{"message": "この登録トークンは既に使用されています"})
	default:
		log.Errorf("liff: link claim: %v", errClaim)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "内部エラーが発生しました"})
	}
}
