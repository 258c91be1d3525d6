package viewer

import (
	"image"
	"math"

	vk "github.com/goki/vulkan"
	"golang.org/x/image/draw"
)

// ComputeMipLevels returns the number of mip levels for an image of the given
// dimensions sampled with the given maximum level-of-detail. The count is
// clamped so that 2^(levels-1) never exceeds the largest dimension; at least
// one level is always returned.
func ComputeMipLevels(samplerMaxLod float64, width, height, depth uint32) uint32 {
	levels := uint32(math.Ceil(samplerMaxLod))
	if levels == 0 {
		levels = 1
	}

	maxDimension := width
	if height > maxDimension {
		maxDimension = height
	}
	if depth > maxDimension {
		maxDimension = depth
	}

	for levels > 1 && (uint32(1)<<(levels-1)) > maxDimension {
		levels--
	}
	return levels
}

// ImageResource is texel data a command graph samples from. Compilation
// computes the mip level count, generates the CPU-side mip chain and enqueues
// the upload through the backend hook.
type ImageResource struct {
	Source image.Image
	Width  uint32
	Height uint32
	Depth  uint32

	SamplerMaxLod float64
	Binding       uint32
	Slot          uint32

	// MipLevels is computed during compile.
	MipLevels uint32

	// Upload realizes the image on the device; supplied by the backend.
	Upload func(ctx *CompileContext, levels []image.Image) error

	mips []image.Image
}

func (r *ImageResource) CollectStats(stats *DescriptorStats) {
	stats.AddSet()
	stats.AddDescriptor(vk.DescriptorTypeCombinedImageSampler, 1)
	stats.ObserveSlot(r.Slot)
}

func (r *ImageResource) Compile(ctx *CompileContext) error {
	r.MipLevels = ComputeMipLevels(r.SamplerMaxLod, r.Width, r.Height, r.Depth)
	r.mips = generateMipChain(r.Source, r.Width, r.Height, r.MipLevels)

	if r.Upload != nil {
		levels := r.mips
		ctx.EnqueueTransfer(func(Queue) error {
			return r.Upload(ctx, levels)
		})
	}
	return nil
}

// generateMipChain downsamples src into levelCount images, halving each
// dimension per level with a floor of one texel.
func generateMipChain(src image.Image, width, height, levelCount uint32) []image.Image {
	if src == nil || levelCount == 0 {
		return nil
	}

	levels := make([]image.Image, 0, levelCount)
	levels = append(levels, src)
	for level := uint32(1); level < levelCount; level++ {
		w := width >> level
		if w == 0 {
			w = 1
		}
		h := height >> level
		if h == 0 {
			h = 1
		}
		dst := image.NewRGBA(image.Rect(0, 0, int(w), int(h)))
		draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
		levels = append(levels, dst)
	}
	return levels
}

// BufferResource is raw data bound through a uniform or storage descriptor.
type BufferResource struct {
	Data           []byte
	DescriptorType vk.DescriptorType
	Binding        uint32
	Slot           uint32

	// Upload realizes the buffer on the device; supplied by the backend.
	Upload func(ctx *CompileContext, data []byte) error
}

func (r *BufferResource) CollectStats(stats *DescriptorStats) {
	stats.AddSet()
	stats.AddDescriptor(r.DescriptorType, 1)
	stats.ObserveSlot(r.Slot)
}

func (r *BufferResource) Compile(ctx *CompileContext) error {
	if r.Upload != nil {
		ctx.EnqueueTransfer(func(Queue) error {
			return r.Upload(ctx, r.Data)
		})
	}
	return nil
}
